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

package fat

import (
	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/block"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
	"github.com/sushionthefork/fav-os/pkg/klog"
)

// Mount is a single FAT volume registered with the VFS under a label. It
// implements vfs.Mount.
type Mount struct {
	label string
	dev   *block.Adapter
	sb    *Superblock
	alloc *AllocTable
}

// Open mounts dev under label: it reads sector 0 and accepts the volume if
// tagged "fat", otherwise formats it fresh, matching spec §4.2.1.
func Open(label string, dev *block.Adapter) (*Mount, *errors.Error) {
	sb, ok, err := readSuperblock(dev)
	if err != nil {
		return nil, err
	}
	if !ok {
		klog.Infof("fat: %s: no valid superblock found, formatting", label)
		sb, err = format(dev)
		if err != nil {
			return nil, err
		}
	}
	m := &Mount{label: label, dev: dev, sb: sb, alloc: newAllocTable(dev, sb)}
	return m, nil
}

// format lays out a fresh volume: allocation table, zero-size root
// directory, and superblock, in that order.
func format(dev *block.Adapter) (*Superblock, *errors.Error) {
	sb := formatLayout(dev)
	alloc := newAllocTable(dev, sb)
	if err := alloc.formatInit(); err != nil {
		return nil, err
	}

	rootBuf := make([]byte, dev.ClusterSize())
	// size header (0) is already zero-valued.
	if err := dev.WriteClusters(uint64(sb.RootCluster), 1, rootBuf); err != nil {
		return nil, err
	}

	if err := writeSuperblock(dev, sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// Label implements vfs.Mount.
func (m *Mount) Label() string { return m.label }

// openDirectory resolves path to a Directory, recursively re-opening the
// parent chain rather than following stored pointers; see the Directory
// doc comment for why.
func (m *Mount) openDirectory(path vfs.Path) (*Directory, *errors.Error) {
	if path.IsRoot() {
		return m.openRootDirectory()
	}
	parent, err := m.openDirectory(path.Parent())
	if err != nil {
		return nil, err
	}
	entry, found := parent.find(path.Name)
	if !found {
		return nil, errors.New(errors.FileNotFound, "fat: no such directory: "+path.String())
	}
	if entry.Attrs&AttrDirectory == 0 {
		return nil, errors.New(errors.FileNotFound, "fat: not a directory: "+path.String())
	}
	return m.openChildDirectory(path.Parent(), path.Name, entry.Start)
}

// changeChildSize re-opens parentPath and updates name's recorded size.
func (m *Mount) changeChildSize(parentPath vfs.Path, name string, size uint32) *errors.Error {
	parent, err := m.openDirectory(parentPath)
	if err != nil {
		return err
	}
	return parent.changeSize(name, size)
}

// ensureDirs materializes every missing directory along dirs, starting from
// root, and returns the final parent's path.
func (m *Mount) ensureDirs(dirs []string) (vfs.Path, *errors.Error) {
	cur := vfs.Path{Mount: m.label}
	for _, comp := range dirs {
		dir, err := m.openDirectory(cur)
		if err != nil {
			return vfs.Path{}, err
		}
		if _, found := dir.find(comp); !found {
			if _, err := dir.create(comp, AttrDirectory); err != nil {
				return vfs.Path{}, err
			}
		}
		cur = vfs.Path{Mount: cur.Mount, Dir: cur.Components(), Name: comp}
	}
	return cur, nil
}

// OpenFile implements vfs.Mount.
func (m *Mount) OpenFile(path vfs.Path, attrs uint8) (vfs.Backend, *errors.Error) {
	if path.IsRoot() {
		return m.openRootDirectory()
	}
	parentDir, err := m.openDirectory(path.Parent())
	if err != nil {
		return nil, err
	}
	entry, found := parentDir.find(path.Name)
	if !found {
		return nil, errors.New(errors.FileNotFound, "fat: no such file: "+path.String())
	}
	if entry.Attrs&AttrDirectory != 0 {
		return m.openChildDirectory(path.Parent(), path.Name, entry.Start)
	}
	return m.openFileObject(path.Parent(), path.Name, entry)
}

// CreateFile implements vfs.Mount: missing intermediate directories are
// materialized, any existing same-name entry is deleted first, and the
// final entry is created fresh in its parent.
func (m *Mount) CreateFile(path vfs.Path, attrs uint8) (vfs.Backend, *errors.Error) {
	parentPath, err := m.ensureDirs(path.Dir)
	if err != nil {
		return nil, err
	}
	parentDir, err := m.openDirectory(parentPath)
	if err != nil {
		return nil, err
	}
	if _, found := parentDir.find(path.Name); found {
		if err := parentDir.remove(path.Name); err != nil {
			return nil, err
		}
	}
	entry, err := parentDir.create(path.Name, attrs)
	if err != nil {
		return nil, err
	}
	if attrs&AttrDirectory != 0 {
		return m.openChildDirectory(parentPath, path.Name, entry.Start)
	}
	return m.openFileObject(parentPath, path.Name, entry)
}

// DeleteFile implements vfs.Mount.
func (m *Mount) DeleteFile(path vfs.Path) *errors.Error {
	if path.IsRoot() {
		return errors.New(errors.PermissionDenied, "fat: cannot delete root")
	}
	parentDir, err := m.openDirectory(path.Parent())
	if err != nil {
		return err
	}
	return parentDir.remove(path.Name)
}
