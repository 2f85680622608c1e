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

package vfs

import (
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
)

// Caps are the capability bits a descriptor (or an open request) carries.
type Caps uint8

const (
	CapRead Caps = 1 << iota
	CapWrite
	// CapReserved marks a slot that has been provisionally claimed while an
	// open that may still fail is in flight. It is never visible together
	// with CapRead/CapWrite on a published descriptor.
	CapReserved
)

// Backend is the interface every storage object behind the VFS implements:
// the FAT driver's files and directories, the pipe endpoints, and the
// stdio console adapter.
type Backend interface {
	// Read reads into buf starting at byte offset pos, returning the
	// number of bytes actually read.
	Read(buf []byte, pos int64) (int, *errors.Error)

	// Write writes buf starting at byte offset pos, returning the number
	// of bytes actually written.
	Write(buf []byte, pos int64) (int, *errors.Error)

	// Resize truncates or extends the backend to newSize bytes.
	Resize(newSize int64) *errors.Error

	// Size reports the current byte size.
	Size() int64

	// IsDirectory reports whether this backend represents a directory.
	IsDirectory() bool

	// ReadOnly reports whether the backend rejects write opens.
	ReadOnly() bool

	// Close notifies the backend that a descriptor holding caps has been
	// closed. Most backends (FAT files/directories) ignore this; pipes use
	// it to drop an endpoint and wake blocked peers.
	Close(caps Caps)
}

// Mount is a filesystem instance registered with the VFS under a label.
type Mount interface {
	Label() string
	OpenFile(path Path, attrs uint8) (Backend, *errors.Error)
	CreateFile(path Path, attrs uint8) (Backend, *errors.Error)
	DeleteFile(path Path) *errors.Error
}

// FileObject is the in-memory identity of a named open file or directory,
// shared by every descriptor that refers to the same path. Its lock is the
// single mutation point for the read/write reference counts; the backend
// itself owns the byte-level locking needed for concurrent I/O.
type FileObject struct {
	Path string // empty for anonymous objects (pipes) not keyed in the open-file table
	Backend Backend

	mu         sync.Mutex
	readCount  int
	writeCount int
}

// Refs returns the current read/write counts.
func (f *FileObject) Refs() (reads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCount, f.writeCount
}

func (f *FileObject) addRefs(caps Caps) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caps&CapRead != 0 {
		f.readCount++
	}
	if caps&CapWrite != 0 {
		f.writeCount++
	}
}

// dropRefs releases caps and reports whether the object is now unreferenced.
func (f *FileObject) dropRefs(caps Caps) (empty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caps&CapRead != 0 && f.readCount > 0 {
		f.readCount--
	}
	if caps&CapWrite != 0 && f.writeCount > 0 {
		f.writeCount--
	}
	return f.readCount == 0 && f.writeCount == 0
}

// Descriptor is a per-table slot: a file reference, a byte position, and
// capability bits. A FREE slot (no backend, caps == 0) is indistinguishable
// from any capability-less slot, so the table tracks freedom by presence of
// File rather than by a dedicated bit.
type Descriptor struct {
	File *FileObject
	Pos  int64
	Caps Caps
}

func (d *Descriptor) free() bool { return d.File == nil }

// Whence selects the base a seek/resize offset is relative to.
type Whence int

const (
	Beginning Whence = iota
	Current
	End
)
