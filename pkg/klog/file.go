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

// Package klog is the kernel-wide leveled logger. Every subsystem logs
// through the package-level Debugf/Infof/Warningf functions rather than
// printing directly: the kernel itself never writes user-visible output,
// only diagnostic traces a host operator can enable.
package klog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileOpts contains options for creating a log file.
type FileOpts interface {
	// Build constructs the log file path based on the given pattern.
	Build(logPattern string) string
}

// PatternOpts is a FileOpts that substitutes %TIMESTAMP% and %COMMAND% in a
// log pattern, the way a host operator names a log file per run.
type PatternOpts struct {
	// Command identifies the run substituted for %COMMAND%.
	Command string
}

// Build substitutes %TIMESTAMP% with the current time and %COMMAND% with
// opts.Command.
func (o PatternOpts) Build(logPattern string) string {
	logPattern = strings.Replace(logPattern, "%TIMESTAMP%", time.Now().Format("20060102-150405.000000"), -1)
	logPattern = strings.Replace(logPattern, "%COMMAND%", o.Command, -1)
	return logPattern
}

// OpenFile opens a log file using the specified flags. It uses opts to
// construct the log file path based on the given logPattern.
func OpenFile(logPattern string, flags int, opts FileOpts) (*os.File, error) {
	if len(logPattern) == 0 {
		return nil, nil
	}

	logPath := opts.Build(logPattern)

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("error creating dir %q: %v", dir, err)
	}

	f, err := os.OpenFile(logPath, flags, 0664)
	if err != nil {
		return nil, fmt.Errorf("error opening file %q: %v", logPath, err)
	}
	return f, nil
}
