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
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

const (
	nameLen      = 12
	dirEntrySize = 24 // name[12] + attrs[1] + pad[3] + start[4] + size[4]

	// MaxDirEntries bounds a non-root directory to one cluster's worth of
	// entries, grounded on fs_fat.cpp's MAX_DIR_ENTRIES.
	MaxDirEntries = 21
)

// Attribute bits, mirrored from the VFS's file-attribute flags.
const (
	AttrReadOnly  uint8 = 1 << iota
	AttrDirectory
	AttrSystem
)

// DirEntry is the fixed-size on-disk directory record.
type DirEntry struct {
	Name  string
	Attrs uint8
	Start uint32
	Size  uint32
}

func (e DirEntry) marshal() []byte {
	buf := make([]byte, dirEntrySize)
	copy(buf[0:nameLen], e.Name)
	buf[nameLen] = e.Attrs
	binary.LittleEndian.PutUint32(buf[16:20], e.Start)
	binary.LittleEndian.PutUint32(buf[20:24], e.Size)
	return buf
}

func unmarshalDirEntry(buf []byte) DirEntry {
	name := buf[0:nameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return DirEntry{
		Name:  string(name),
		Attrs: buf[nameLen],
		Start: binary.LittleEndian.Uint32(buf[16:20]),
		Size:  binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// Directory is a loaded, packed-array directory: either the root (whose
// size lives in a 4-byte header prefixing its own cluster) or a subdirectory
// (whose size lives in its own DirEntry inside its parent). A subdirectory
// keeps only its parent's path, not a pointer to the parent Directory
// object, so that parent access always re-opens a fresh Directory and the
// per-directory lock never has to be re-entrant.
type Directory struct {
	mu sync.Mutex

	m       *Mount
	isRoot  bool
	cluster uint32

	// Name and parentPath identify this directory's own entry within its
	// parent; both are empty for the root.
	name       string
	parentPath vfs.Path

	entries []DirEntry
}

func (m *Mount) openRootDirectory() (*Directory, *errors.Error) {
	d := &Directory{m: m, isRoot: true, cluster: m.sb.RootCluster}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (m *Mount) openChildDirectory(parentPath vfs.Path, name string, cluster uint32) (*Directory, *errors.Error) {
	d := &Directory{m: m, isRoot: false, cluster: m.sb.DataFirstCluster + cluster, name: name, parentPath: parentPath}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// byteSize reports the directory's current used size, derived from the
// number of loaded entries.
func (d *Directory) byteSize() uint32 { return uint32(len(d.entries)) * dirEntrySize }

// load reads this directory's cluster and parses its entries. For the
// root, the entry count comes from a 4-byte header prefixing the cluster;
// for a subdirectory, it comes from re-opening the parent and consulting
// this directory's own entry there.
func (d *Directory) load() *errors.Error {
	buf := make([]byte, d.m.dev.ClusterSize())
	if err := d.m.dev.ReadClusters(uint64(d.cluster), 1, buf); err != nil {
		return err
	}

	var size uint32
	var entryBuf []byte
	if d.isRoot {
		size = binary.LittleEndian.Uint32(buf[0:4])
		entryBuf = buf[4:]
	} else {
		parent, err := d.m.openDirectory(d.parentPath)
		if err != nil {
			return err
		}
		entry, found := parent.find(d.name)
		if !found {
			return errors.New(errors.FileNotFound, "fat: directory entry vanished: "+d.name)
		}
		size = entry.Size
		entryBuf = buf
	}

	count := size / dirEntrySize
	entries := make([]DirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		off := i * dirEntrySize
		if off+dirEntrySize > uint32(len(entryBuf)) {
			break
		}
		entries = append(entries, unmarshalDirEntry(entryBuf[off:off+dirEntrySize]))
	}
	d.entries = entries
	return nil
}

// persist writes the entry array back to disk and, for a subdirectory,
// updates its own size in the parent's entry.
func (d *Directory) persist() *errors.Error {
	buf := make([]byte, d.m.dev.ClusterSize())
	body := buf
	if d.isRoot {
		binary.LittleEndian.PutUint32(buf[0:4], d.byteSize())
		body = buf[4:]
	}
	for i, e := range d.entries {
		off := i * dirEntrySize
		copy(body[off:off+dirEntrySize], e.marshal())
	}
	if err := d.m.dev.WriteClusters(uint64(d.cluster), 1, buf); err != nil {
		return err
	}
	if !d.isRoot {
		if err := d.m.changeChildSize(d.parentPath, d.name, d.byteSize()); err != nil {
			return err
		}
	}
	return nil
}

// find performs a linear scan for name.
func (d *Directory) find(name string) (DirEntry, bool) {
	for _, e := range d.entries {
		if e.Name == name {
			return e, true
		}
	}
	return DirEntry{}, false
}

// create allocates one FAT entry for a new child, appends its DirEntry and
// persists. On any persistence failure the reserved entry is rolled back to
// FREE.
func (d *Directory) create(name string, attrs uint8) (DirEntry, *errors.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.entries) >= MaxDirEntries {
		return DirEntry{}, errors.New(errors.NotEnoughDiskSpace, "fat: directory full")
	}
	claimed, err := d.m.alloc.Allocate(1)
	if err != nil {
		return DirEntry{}, err
	}
	if err := d.m.alloc.Chain(claimed); err != nil {
		d.m.alloc.Free(claimed)
		return DirEntry{}, err
	}

	entry := DirEntry{Name: name, Attrs: attrs, Start: claimed[0], Size: 0}
	d.entries = append(d.entries, entry)
	if err := d.persist(); err != nil {
		d.entries = d.entries[:len(d.entries)-1]
		d.m.alloc.Free(claimed)
		return DirEntry{}, err
	}
	return entry, nil
}

// remove frees name's allocation chain and swap-removes its entry.
func (d *Directory) remove(name string) *errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := -1
	for i, e := range d.entries {
		if e.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New(errors.FileNotFound, "fat: no such entry: "+name)
	}
	entry := d.entries[idx]

	if entry.Attrs&AttrDirectory != 0 {
		child, err := d.m.openChildDirectory(d.ownPath(), entry.Name, entry.Start)
		if err != nil {
			return err
		}
		if len(child.entries) > 0 {
			return errors.New(errors.DirectoryNotEmpty, "fat: directory not empty: "+name)
		}
	}

	chain, err := d.m.alloc.Follow(entry.Start)
	if err != nil {
		return err
	}
	if err := d.m.alloc.Free(chain); err != nil {
		return err
	}

	last := len(d.entries) - 1
	d.entries[idx] = d.entries[last]
	d.entries = d.entries[:last]
	return d.persist()
}

// changeSize updates a child's recorded byte size.
func (d *Directory) changeSize(name string, newSize uint32) *errors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.entries {
		if d.entries[i].Name == name {
			d.entries[i].Size = newSize
			return d.persist()
		}
	}
	return errors.New(errors.FileNotFound, "fat: no such entry: "+name)
}

// readEntries packs a copy of the loaded entries, for listing.
func (d *Directory) readEntries() []DirEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DirEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// ownPath reconstructs this directory's absolute path for addressing its
// own children's parent references.
func (d *Directory) ownPath() vfs.Path {
	if d.isRoot {
		return vfs.Path{Mount: d.m.label}
	}
	return vfs.Path{Mount: d.parentPath.Mount, Dir: d.parentPath.Components(), Name: d.name}
}

// IsDirectory implements vfs.Backend.
func (d *Directory) IsDirectory() bool { return true }

// ReadOnly implements vfs.Backend; directories are never opened for write.
func (d *Directory) ReadOnly() bool { return true }

// Size implements vfs.Backend as the byte length of the packed entry array.
func (d *Directory) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.byteSize())
}

// Close implements vfs.Backend; directories have no descriptor-scoped state.
func (d *Directory) Close(vfs.Caps) {}

// Resize implements vfs.Backend; a directory's size is derived, not settable.
func (d *Directory) Resize(int64) *errors.Error {
	return errors.New(errors.InvalidArgument, "fat: cannot resize a directory")
}

// Write implements vfs.Backend; directories are not writable as byte
// streams, only through create/remove/changeSize.
func (d *Directory) Write([]byte, int64) (int, *errors.Error) {
	return 0, errors.New(errors.InvalidArgument, "fat: cannot write a directory")
}

// Read implements vfs.Backend: it packs the directory's entries, starting
// at byte offset pos, into buf in units of dirEntrySize, for a readdir-style
// listing.
func (d *Directory) Read(buf []byte, pos int64) (int, *errors.Error) {
	entries := d.readEntries()
	data := make([]byte, len(entries)*dirEntrySize)
	for i, e := range entries {
		copy(data[i*dirEntrySize:], e.marshal())
	}
	if pos < 0 || pos >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[pos:])
	return n, nil
}
