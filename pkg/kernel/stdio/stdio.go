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

// Package stdio is the minimal "stdio" mount: it maps stdin/stdout onto the
// host console through hal.Console. The spec treats stdio and proc as
// external collaborators that merely satisfy the mount contract; this is
// the one of the two that needs a real implementation.
package stdio

import (
	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/hal"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

// Label is the conventional mount label user programs use to reach stdio.
const Label = "stdio"

const (
	stdinName  = "stdin"
	stdoutName = "stdout"
)

// Mount implements vfs.Mount over a single hal.Console, exposing exactly
// two fixed names at its root: "stdin" (read-only) and "stdout"
// (write-only). There is no directory structure, no creation, no deletion.
type Mount struct {
	console hal.Console
}

// New wraps console as a stdio mount.
func New(console hal.Console) *Mount {
	return &Mount{console: console}
}

// Label implements vfs.Mount.
func (m *Mount) Label() string { return Label }

// OpenFile implements vfs.Mount: only the two fixed names at the root
// resolve. Opening the root itself is refused with PermissionDenied, since
// stdio has no directory listing.
func (m *Mount) OpenFile(path vfs.Path, attrs uint8) (vfs.Backend, *errors.Error) {
	if path.IsRoot() {
		return nil, errors.New(errors.PermissionDenied, "stdio: root has no directory listing")
	}
	if len(path.Dir) != 0 {
		return nil, errors.New(errors.FileNotFound, "stdio: no such path: "+path.String())
	}
	switch path.Name {
	case stdinName:
		return &endpoint{console: m.console, write: false}, nil
	case stdoutName:
		return &endpoint{console: m.console, write: true}, nil
	default:
		return nil, errors.New(errors.FileNotFound, "stdio: no such file: "+path.Name)
	}
}

// CreateFile implements vfs.Mount; stdio has a fixed, uncreatable namespace.
func (m *Mount) CreateFile(path vfs.Path, attrs uint8) (vfs.Backend, *errors.Error) {
	return nil, errors.New(errors.PermissionDenied, "stdio: cannot create files")
}

// DeleteFile implements vfs.Mount; stdio has a fixed, undeletable namespace.
func (m *Mount) DeleteFile(path vfs.Path) *errors.Error {
	return errors.New(errors.PermissionDenied, "stdio: cannot delete files")
}

// endpoint adapts one direction of hal.Console to vfs.Backend.
type endpoint struct {
	console hal.Console
	write   bool
}

func (e *endpoint) IsDirectory() bool { return false }
func (e *endpoint) ReadOnly() bool    { return !e.write }
func (e *endpoint) Size() int64       { return 0 }
func (e *endpoint) Close(vfs.Caps)    {}

func (e *endpoint) Resize(int64) *errors.Error {
	return errors.New(errors.InvalidArgument, "stdio: cannot resize a console stream")
}

func (e *endpoint) Read(buf []byte, _ int64) (int, *errors.Error) {
	if e.write {
		return 0, errors.New(errors.InvalidArgument, "stdio: read on stdout")
	}
	n, ok := e.console.ReadConsole(buf)
	if !ok {
		return n, errors.New(errors.IOError, "stdio: console read failed")
	}
	return n, nil
}

func (e *endpoint) Write(buf []byte, _ int64) (int, *errors.Error) {
	if !e.write {
		return 0, errors.New(errors.InvalidArgument, "stdio: write on stdin")
	}
	n, ok := e.console.WriteConsole(buf)
	if !ok {
		return n, errors.New(errors.IOError, "stdio: console write failed")
	}
	return n, nil
}
