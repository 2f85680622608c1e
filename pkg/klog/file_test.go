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

package klog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sushionthefork/fav-os/pkg/klog"
)

// TestOpenFileEmptyPatternIsNoop exercises the "no log file configured"
// case: an empty pattern must not create anything.
func TestOpenFileEmptyPatternIsNoop(t *testing.T) {
	f, err := klog.OpenFile("", os.O_WRONLY|os.O_CREATE, klog.PatternOpts{Command: "test"})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f != nil {
		t.Fatal("OpenFile with an empty pattern returned a non-nil file")
	}
}

// TestOpenFileSubstitutesCommandAndCreatesDir exercises PatternOpts.Build's
// %COMMAND% substitution and OpenFile's parent-directory creation.
func TestOpenFileSubstitutesCommandAndCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	pattern := filepath.Join(dir, "%COMMAND%.log")

	f, err := klog.OpenFile(pattern, os.O_WRONLY|os.O_CREATE|os.O_APPEND, klog.PatternOpts{Command: "init"})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f == nil {
		t.Fatal("OpenFile returned a nil file for a non-empty pattern")
	}
	defer f.Close()

	want := filepath.Join(dir, "init.log")
	if f.Name() != want {
		t.Fatalf("OpenFile created %q, want %q", f.Name(), want)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("parent directory was not created: %v", err)
	}
}

// TestSetOutputWritesToConfiguredFile exercises the wiring this file's
// caller relies on: klog.SetOutput pointed at a file opened through
// OpenFile actually receives subsequent log lines.
func TestSetOutputWritesToConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.log")
	f, err := klog.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, klog.PatternOpts{Command: "init"})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	prevLevel := klog.Debug
	klog.SetOutput(f)
	klog.SetLevel(prevLevel)
	klog.Infof("hello from %s", "test")
	f.Sync()

	got, rerr := os.ReadFile(path)
	if rerr != nil {
		t.Fatalf("reading log file: %v", rerr)
	}
	if !strings.Contains(string(got), "hello from test") {
		t.Fatalf("log file content = %q, want it to contain the logged line", got)
	}

	klog.SetOutput(os.Stderr)
}
