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

// MaxFD bounds the number of descriptors a single process may hold open
// simultaneously.
const MaxFD = 64

// DescriptorTable is a fixed-size, per-process table of Descriptor slots.
// It plays the role gVisor's FDTable plays for a task, simplified from a
// generation-counted sparse map to a flat array sized by the kernel's fixed
// MAX_FD budget.
type DescriptorTable struct {
	mu   sync.Mutex
	slot [MaxFD]Descriptor
}

// NewDescriptorTable returns an empty table.
func NewDescriptorTable() *DescriptorTable {
	return &DescriptorTable{}
}

// Reserve finds a free slot and marks it CapReserved, returning its index.
// The caller must later either Publish or Release the slot; a reserved slot
// that is never resolved leaks the descriptor, mirroring the "reserve before
// the open can still fail" pattern used by the FAT create/open path.
func (t *DescriptorTable) Reserve() (int, *errors.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slot {
		if t.slot[i].free() && t.slot[i].Caps&CapReserved == 0 {
			t.slot[i] = Descriptor{Caps: CapReserved}
			return i, nil
		}
	}
	return -1, errors.New(errors.OutOfMemory, "vfs: descriptor table full")
}

// Publish completes a Reserve by attaching the opened file and final caps.
func (t *DescriptorTable) Publish(fd int, file *FileObject, caps Caps) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slot[fd] = Descriptor{File: file, Caps: caps}
}

// Release frees a reserved (but never published) slot.
func (t *DescriptorTable) Release(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slot[fd] = Descriptor{}
}

// Get returns a copy of the descriptor at fd, or an error if fd is out of
// range or the slot is free/reserved.
func (t *DescriptorTable) Get(fd int) (Descriptor, *errors.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= MaxFD {
		return Descriptor{}, errors.New(errors.InvalidArgument, "vfs: fd out of range")
	}
	d := t.slot[fd]
	if d.free() || d.Caps&CapReserved != 0 {
		return Descriptor{}, errors.New(errors.InvalidArgument, "vfs: fd not open")
	}
	return d, nil
}

// SetPos updates the byte position stored for fd.
func (t *DescriptorTable) SetPos(fd int, pos int64) *errors.Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= MaxFD || t.slot[fd].free() {
		return errors.New(errors.InvalidArgument, "vfs: fd not open")
	}
	t.slot[fd].Pos = pos
	return nil
}

// Close removes fd from the table and returns the descriptor that occupied
// it, so the caller (VFS.Close) can drop the table lock before invoking any
// backend Close callback. This split is what lets directory and pipe
// backends call back into the VFS without re-entering this same mutex.
func (t *DescriptorTable) Close(fd int) (Descriptor, *errors.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= MaxFD || t.slot[fd].free() {
		return Descriptor{}, errors.New(errors.InvalidArgument, "vfs: fd not open")
	}
	d := t.slot[fd]
	t.slot[fd] = Descriptor{}
	return d, nil
}

// ForEach invokes fn for every currently open (non-free, non-reserved)
// descriptor, in slot order. fn must not call back into the table.
func (t *DescriptorTable) ForEach(fn func(fd int, d Descriptor)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slot {
		d := t.slot[i]
		if d.free() || d.Caps&CapReserved != 0 {
			continue
		}
		fn(i, d)
	}
}

// CloseAll closes every open descriptor in the table, invoking closeFile for
// each one after the table lock has been released.
func (t *DescriptorTable) CloseAll(closeFile func(d Descriptor)) {
	var open []Descriptor
	t.mu.Lock()
	for i := range t.slot {
		d := t.slot[i]
		if !d.free() && d.Caps&CapReserved == 0 {
			open = append(open, d)
		}
		t.slot[i] = Descriptor{}
	}
	t.mu.Unlock()
	for _, d := range open {
		closeFile(d)
	}
}
