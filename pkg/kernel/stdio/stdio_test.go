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

package stdio_test

import (
	"bytes"
	"testing"

	"github.com/sushionthefork/fav-os/pkg/kernel/stdio"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

// fakeConsole is an in-memory hal.Console: reads drain an input buffer,
// writes append to an output buffer.
type fakeConsole struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (c *fakeConsole) ReadConsole(buf []byte) (int, bool) {
	n, err := c.in.Read(buf)
	return n, err == nil
}

func (c *fakeConsole) WriteConsole(buf []byte) (int, bool) {
	n, err := c.out.Write(buf)
	return n, err == nil
}

func path(name string) vfs.Path { return vfs.Path{Mount: stdio.Label, Name: name} }

func TestStdoutWriteOnly(t *testing.T) {
	console := &fakeConsole{in: bytes.NewBufferString("")}
	m := stdio.New(console)

	backend, err := m.OpenFile(path("stdout"), 0)
	if err != nil {
		t.Fatalf("OpenFile(stdout): %v", err)
	}
	if backend.IsDirectory() {
		t.Fatal("stdout reported as a directory")
	}

	msg := []byte("hello console")
	n, werr := backend.Write(msg, 0)
	if werr != nil || n != len(msg) {
		t.Fatalf("Write: n=%d err=%v", n, werr)
	}
	if console.out.String() != string(msg) {
		t.Fatalf("console received %q, want %q", console.out.String(), msg)
	}

	if _, rerr := backend.Read(make([]byte, 4), 0); rerr == nil {
		t.Fatal("Read on stdout unexpectedly succeeded")
	}
}

func TestStdinReadOnly(t *testing.T) {
	console := &fakeConsole{in: bytes.NewBufferString("typed input")}
	m := stdio.New(console)

	backend, err := m.OpenFile(path("stdin"), 0)
	if err != nil {
		t.Fatalf("OpenFile(stdin): %v", err)
	}

	got := make([]byte, len("typed input"))
	n, rerr := backend.Read(got, 0)
	if rerr != nil || n != len(got) {
		t.Fatalf("Read: n=%d err=%v", n, rerr)
	}
	if string(got) != "typed input" {
		t.Fatalf("Read = %q, want %q", got, "typed input")
	}

	if _, werr := backend.Write([]byte("x"), 0); werr == nil {
		t.Fatal("Write on stdin unexpectedly succeeded")
	}
}

func TestRootListingRefused(t *testing.T) {
	m := stdio.New(&fakeConsole{in: bytes.NewBufferString("")})
	if _, err := m.OpenFile(vfs.Path{Mount: stdio.Label}, 0); err == nil {
		t.Fatal("OpenFile on stdio root unexpectedly succeeded")
	}
}

func TestCreateAndDeleteRefused(t *testing.T) {
	m := stdio.New(&fakeConsole{in: bytes.NewBufferString("")})
	if _, err := m.CreateFile(path("newfile"), 0); err == nil {
		t.Fatal("CreateFile on stdio unexpectedly succeeded")
	}
	if err := m.DeleteFile(path("stdout")); err == nil {
		t.Fatal("DeleteFile on stdio unexpectedly succeeded")
	}
}

func TestUnknownNameNotFound(t *testing.T) {
	m := stdio.New(&fakeConsole{in: bytes.NewBufferString("")})
	if _, err := m.OpenFile(path("console"), 0); err == nil {
		t.Fatal("OpenFile on an unknown stdio name unexpectedly succeeded")
	}
}
