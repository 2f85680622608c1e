// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package klog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is a logging verbosity level.
type Level int

// Levels in increasing verbosity order.
const (
	Warning Level = iota
	Info
	Debug
)

var (
	mu       sync.Mutex
	out      = os.Stderr
	minLevel = Info
)

// SetOutput redirects log output; used by tests to capture log lines.
func SetOutput(w *os.File) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel changes the minimum level that is emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

func emit(l Level, tag, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l > minLevel {
		return
	}
	fmt.Fprintf(out, "%s %s %s\n", time.Now().UTC().Format("15:04:05.000000"), tag, fmt.Sprintf(format, args...))
}

// Debugf logs at debug verbosity.
func Debugf(format string, args ...any) { emit(Debug, "D", format, args...) }

// Infof logs at info verbosity.
func Infof(format string, args ...any) { emit(Info, "I", format, args...) }

// Warningf logs at warning verbosity; always emitted.
func Warningf(format string, args ...any) { emit(Warning, "W", format, args...) }
