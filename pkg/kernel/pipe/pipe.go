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

// Package pipe implements the kernel's anonymous pipe: a bounded byte ring
// buffer with one writer end and one reader end, blocking reads and writes
// FIFO at byte granularity. It mirrors the role gVisor's pipe.Pipe plays for
// VFS1 pipes, rebuilt around plain sync.Cond blocking instead of the
// waiter-queue/fs.File machinery gVisor's sentry uses, since this kernel has
// no equivalent event-notification subsystem to hook into.
package pipe

import (
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

// DefaultCapacity is the ring buffer size used when none is specified.
const DefaultCapacity = 4096

// Pipe is the shared state behind one writer endpoint and one reader
// endpoint. It is never referenced directly by callers; New returns the two
// *Endpoint values that the VFS installs into descriptor slots.
type Pipe struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf   []byte
	start int
	size  int

	readers int
	writers int
}

// Endpoint is one side of a Pipe, implementing vfs.Backend. The VFS never
// sees the underlying Pipe, only the two Endpoint values New returns.
type Endpoint struct {
	p     *Pipe
	write bool
}

// New creates a pipe with the given ring-buffer capacity and returns its
// write and read endpoints, each with a reference count of one.
func New(capacity int) (writer, reader *Endpoint) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pipe{
		buf:     make([]byte, capacity),
		readers: 1,
		writers: 1,
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	return &Endpoint{p: p, write: true}, &Endpoint{p: p, write: false}
}

// IsDirectory implements vfs.Backend.
func (e *Endpoint) IsDirectory() bool { return false }

// ReadOnly implements vfs.Backend.
func (e *Endpoint) ReadOnly() bool { return !e.write }

// Size implements vfs.Backend: pipes report their currently buffered byte
// count rather than a fixed file size.
func (e *Endpoint) Size() int64 {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return int64(e.p.size)
}

// Resize implements vfs.Backend; pipes cannot be resized.
func (e *Endpoint) Resize(int64) *errors.Error {
	return errors.New(errors.InvalidArgument, "pipe: cannot resize")
}

// Read implements vfs.Backend. It blocks until at least one byte is
// available or the write end has been closed. Once the write end is closed
// and the buffer has drained, it returns (0, nil) to signal end of stream.
func (e *Endpoint) Read(buf []byte, _ int64) (int, *errors.Error) {
	if e.write {
		return 0, errors.New(errors.InvalidArgument, "pipe: read on write endpoint")
	}
	if len(buf) == 0 {
		return 0, nil
	}
	p := e.p
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.size == 0 && p.writers > 0 {
		p.notEmpty.Wait()
	}
	if p.size == 0 {
		return 0, nil
	}

	n := 0
	for n < len(buf) && p.size > 0 {
		buf[n] = p.buf[p.start]
		p.start = (p.start + 1) % len(p.buf)
		p.size--
		n++
	}
	p.notFull.Broadcast()
	return n, nil
}

// Write implements vfs.Backend. It blocks while the ring buffer is full and
// readers remain; if all readers have closed, it fails with BrokenPipe.
func (e *Endpoint) Write(buf []byte, _ int64) (int, *errors.Error) {
	if !e.write {
		return 0, errors.New(errors.InvalidArgument, "pipe: write on read endpoint")
	}
	p := e.p
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(buf) {
		for p.size == len(p.buf) && p.readers > 0 {
			p.notFull.Wait()
		}
		if p.readers == 0 {
			return n, errors.New(errors.BrokenPipe, "pipe: no readers remain")
		}
		for n < len(buf) && p.size < len(p.buf) {
			idx := (p.start + p.size) % len(p.buf)
			p.buf[idx] = buf[n]
			p.size++
			n++
		}
		p.notEmpty.Broadcast()
	}
	return n, nil
}

// Close implements vfs.Backend: it drops this endpoint's reference and, if
// no endpoint of that kind remains, wakes any peer blocked waiting on the
// other side so it can observe end-of-stream or BrokenPipe.
func (e *Endpoint) Close(caps vfs.Caps) {
	p := e.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.write {
		if p.writers > 0 {
			p.writers--
		}
		if p.writers == 0 {
			p.notEmpty.Broadcast()
		}
	} else {
		if p.readers > 0 {
			p.readers--
		}
		if p.readers == 0 {
			p.notFull.Broadcast()
		}
	}
}

// NewBackends adapts New to the (writer, reader vfs.Backend) shape VFS.CreatePipe
// expects.
func NewBackends(capacity int) func() (vfs.Backend, vfs.Backend) {
	return func() (vfs.Backend, vfs.Backend) {
		w, r := New(capacity)
		return w, r
	}
}
