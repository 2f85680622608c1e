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

// FileSystemFactory constructs a Mount from a block device already adapted
// to cluster addressing; RegisterFileSystem binds one under a name so
// callers can mount by filesystem type without the vfs package importing
// the fat package directly (avoiding an import cycle between vfs and the
// concrete filesystem drivers that depend on it).
type FileSystemFactory func() (Mount, *errors.Error)

// MountTable maps mount labels ("C", "D", ...) to live Mount instances. It
// is deliberately a flat map rather than gVisor's dentry-graph MountNamespace:
// this kernel has no bind-mounts or mount propagation, only top-level
// label-rooted filesystems, so a label -> Mount table is the whole model.
type MountTable struct {
	mu    sync.RWMutex
	byLbl map[string]Mount
}

// NewMountTable returns an empty table.
func NewMountTable() *MountTable {
	return &MountTable{byLbl: make(map[string]Mount)}
}

// Mount registers m under its own Label, failing if the label is taken.
func (t *MountTable) Mount(m Mount) *errors.Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	label := m.Label()
	if len(t.byLbl) >= MaxFSMounted {
		return errors.New(errors.OutOfMemory, "vfs: mount table full")
	}
	if _, ok := t.byLbl[label]; ok {
		return errors.New(errors.InvalidArgument, "vfs: mount label already in use: "+label)
	}
	t.byLbl[label] = m
	return nil
}

// Unmount removes the mount registered under label.
func (t *MountTable) Unmount(label string) *errors.Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byLbl[label]; !ok {
		return errors.New(errors.FileNotFound, "vfs: no such mount: "+label)
	}
	delete(t.byLbl, label)
	return nil
}

// Lookup returns the mount registered under label.
func (t *MountTable) Lookup(label string) (Mount, *errors.Error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.byLbl[label]
	if !ok {
		return nil, errors.New(errors.FileNotFound, "vfs: no such mount: "+label)
	}
	return m, nil
}
