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
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

// File is a cluster-addressed regular file. Its allocation chain is
// materialized once at open time (fs_fat.cpp's Get_File_Fat_Entries) and
// kept in sync with every write or resize that changes the chain length.
type File struct {
	mu sync.Mutex

	m          *Mount
	parentPath vfs.Path
	name       string
	attrs      uint8

	chain []uint32
	size  uint32
}

func (m *Mount) openFileObject(parentPath vfs.Path, name string, entry DirEntry) (*File, *errors.Error) {
	chain, err := m.alloc.Follow(entry.Start)
	if err != nil {
		return nil, err
	}
	return &File{m: m, parentPath: parentPath, name: name, attrs: entry.Attrs, chain: chain, size: entry.Size}, nil
}

// IsDirectory implements vfs.Backend.
func (f *File) IsDirectory() bool { return false }

// ReadOnly implements vfs.Backend.
func (f *File) ReadOnly() bool { return f.attrs&AttrReadOnly != 0 }

// Size implements vfs.Backend.
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(f.size)
}

// Close implements vfs.Backend; fat files have no descriptor-scoped state.
func (f *File) Close(vfs.Caps) {}

// Read implements vfs.Backend, clamping the request to the file's current
// size and copying out of whichever clusters the range touches.
func (f *File) Read(buf []byte, pos int64) (int, *errors.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pos < 0 || pos >= int64(f.size) {
		return 0, nil
	}
	size := len(buf)
	if int64(size) > int64(f.size)-pos {
		size = int(int64(f.size) - pos)
	}
	if size <= 0 {
		return 0, nil
	}

	clusterSize := int64(f.m.dev.ClusterSize())
	firstCluster := pos / clusterSize
	lastByte := pos + int64(size) - 1
	lastCluster := lastByte / clusterSize
	if lastByte == 0 {
		lastCluster = 0
	}

	scratch := make([]byte, clusterSize)
	out := 0
	for c := firstCluster; c <= lastCluster; c++ {
		if int(c) >= len(f.chain) {
			break
		}
		if err := f.m.dev.ReadClusters(uint64(f.m.sb.DataFirstCluster)+uint64(f.chain[c]), 1, scratch); err != nil {
			return out, err
		}
		clusterStart := c * clusterSize
		srcOff := int64(0)
		if clusterStart < pos {
			srcOff = pos - clusterStart
		}
		srcEnd := clusterSize
		if clusterStart+clusterSize > pos+int64(size) {
			srcEnd = pos + int64(size) - clusterStart
		}
		n := copy(buf[out:], scratch[srcOff:srcEnd])
		out += n
	}
	return out, nil
}

// Write implements vfs.Backend, extending the chain (with rollback on
// failure) when the write reaches past the currently materialized clusters,
// then read-modify-writing every touched cluster.
func (f *File) Write(buf []byte, pos int64) (int, *errors.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(buf) == 0 {
		return 0, nil
	}
	clusterSize := int64(f.m.dev.ClusterSize())
	lastCluster := (pos + int64(len(buf)) - 1) / clusterSize
	needed := int(lastCluster) + 1

	if needed > len(f.chain) {
		extra := needed - len(f.chain)
		newEntries, err := f.m.alloc.Allocate(uint32(extra))
		if err != nil {
			return 0, err
		}
		fullChain := append(append([]uint32{}, f.chain...), newEntries...)
		if err := f.m.alloc.Chain(fullChain); err != nil {
			f.m.alloc.Free(newEntries)
			return 0, err
		}
		f.chain = fullChain
	}

	scratch := make([]byte, clusterSize)
	firstCluster := pos / clusterSize
	out := 0
	for c := firstCluster; c <= lastCluster; c++ {
		if err := f.m.dev.ReadClusters(uint64(f.m.sb.DataFirstCluster)+uint64(f.chain[c]), 1, scratch); err != nil {
			return out, err
		}
		clusterStart := c * clusterSize
		dstOff := int64(0)
		if clusterStart < pos {
			dstOff = pos - clusterStart
		}
		dstEnd := clusterSize
		if clusterStart+clusterSize > pos+int64(len(buf)) {
			dstEnd = pos + int64(len(buf)) - clusterStart
		}
		n := copy(scratch[dstOff:dstEnd], buf[out:])
		if err := f.m.dev.WriteClusters(uint64(f.m.sb.DataFirstCluster)+uint64(f.chain[c]), 1, scratch); err != nil {
			return out, err
		}
		out += n
	}

	if newSize := pos + int64(out); newSize > int64(f.size) {
		f.size = uint32(newSize)
		if err := f.m.changeChildSize(f.parentPath, f.name, f.size); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Resize implements vfs.Backend: on shrink it frees the tail of the chain
// and re-terminates it in EOF; on grow it allocates the missing entries and
// persists the extended chain. The parent's size field is always updated.
func (f *File) Resize(newSize int64) *errors.Error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if newSize < 0 {
		return errors.New(errors.InvalidArgument, "fat: negative size")
	}
	clusterSize := int64(f.m.dev.ClusterSize())
	neededClusters := 0
	if newSize > 0 {
		neededClusters = int((newSize + clusterSize - 1) / clusterSize)
	}

	switch {
	case neededClusters < len(f.chain):
		tail := f.chain[neededClusters:]
		if err := f.m.alloc.Free(tail); err != nil {
			return err
		}
		f.chain = f.chain[:neededClusters]
		if len(f.chain) > 0 {
			if err := f.m.alloc.Chain(f.chain); err != nil {
				return err
			}
		}
	case neededClusters > len(f.chain):
		extra := neededClusters - len(f.chain)
		newEntries, err := f.m.alloc.Allocate(uint32(extra))
		if err != nil {
			return err
		}
		fullChain := append(append([]uint32{}, f.chain...), newEntries...)
		if err := f.m.alloc.Chain(fullChain); err != nil {
			f.m.alloc.Free(newEntries)
			return err
		}
		f.chain = fullChain
	}

	f.size = uint32(newSize)
	return f.m.changeChildSize(f.parentPath, f.name, f.size)
}
