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
	"encoding/binary"
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/block"
)

// Sentinel allocation-table entry values, grounded on fs_fat.cpp's
// FAT_FREE/FAT_RESERVED/FAT_EOF constants (-2/-3/-4 as uint32).
const (
	entryFree     uint32 = 0xFFFFFFFE
	entryReserved uint32 = 0xFFFFFFFD
	entryEOF      uint32 = 0xFFFFFFFC
)

// AllocTable is the on-disk linked allocation table: a dense array of
// 32-bit entries stored in the clusters immediately following the
// superblock. Every batched write groups entries by the cluster they live
// in, reading, patching and writing that cluster exactly once, matching
// fs_fat.cpp's Write_Fat_Entries.
type AllocTable struct {
	mu sync.Mutex

	dev          *block.Adapter
	firstCluster uint32
	entryCount   uint32
}

func newAllocTable(dev *block.Adapter, sb *Superblock) *AllocTable {
	return &AllocTable{dev: dev, firstCluster: sb.FATCluster, entryCount: sb.FATEntries}
}

func (t *AllocTable) entriesPerCluster() uint32 {
	return t.dev.ClusterSize() / 4
}

func (t *AllocTable) clusterForEntry(e uint32) uint32 {
	return t.firstCluster + e/t.entriesPerCluster()
}

// readCluster returns the parsed entries of the allocation-table cluster at
// absolute cluster index clusterIdx.
func (t *AllocTable) readCluster(clusterIdx uint32) ([]uint32, *errors.Error) {
	buf := make([]byte, t.dev.ClusterSize())
	if err := t.dev.ReadClusters(uint64(clusterIdx), 1, buf); err != nil {
		return nil, err
	}
	entries := make([]uint32, len(buf)/4)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return entries, nil
}

func (t *AllocTable) writeCluster(clusterIdx uint32, entries []uint32) *errors.Error {
	buf := make([]byte, t.dev.ClusterSize())
	for i, v := range entries {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return t.dev.WriteClusters(uint64(clusterIdx), 1, buf)
}

// formatInit writes entryFree to every entry, formatting a fresh table.
func (t *AllocTable) formatInit() *errors.Error {
	perCluster := t.entriesPerCluster()
	clusterCount := (t.entryCount + perCluster - 1) / perCluster
	blank := make([]uint32, perCluster)
	for i := range blank {
		blank[i] = entryFree
	}
	for c := uint32(0); c < clusterCount; c++ {
		if err := t.writeCluster(t.firstCluster+c, blank); err != nil {
			return err
		}
	}
	return nil
}

// setEntries writes a batch of (index -> value) assignments, grouping by
// containing cluster so each touched cluster is read, patched and written
// exactly once.
func (t *AllocTable) setEntries(values map[uint32]uint32) *errors.Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setEntriesLocked(values)
}

func (t *AllocTable) setEntriesLocked(values map[uint32]uint32) *errors.Error {
	byCluster := make(map[uint32]map[uint32]uint32)
	for idx, val := range values {
		c := t.clusterForEntry(idx)
		if byCluster[c] == nil {
			byCluster[c] = make(map[uint32]uint32)
		}
		byCluster[c][idx] = val
	}
	perCluster := t.entriesPerCluster()
	for c, patch := range byCluster {
		entries, err := t.readCluster(c)
		if err != nil {
			return err
		}
		for idx, val := range patch {
			entries[idx%perCluster] = val
		}
		if err := t.writeCluster(c, entries); err != nil {
			return err
		}
	}
	return nil
}

// setAll sets every entry in indices to the same value in one batch.
func (t *AllocTable) setAll(indices []uint32, value uint32) *errors.Error {
	values := make(map[uint32]uint32, len(indices))
	for _, idx := range indices {
		values[idx] = value
	}
	return t.setEntries(values)
}

// Allocate scans the table sequentially for n free entries, marks them
// RESERVED in one batch and returns them in scan order. It fails with
// NotEnoughDiskSpace, with no partial allocation visible on disk, if fewer
// than n free entries are found.
func (t *AllocTable) Allocate(n uint32) ([]uint32, *errors.Error) {
	if n == 0 {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	perCluster := t.entriesPerCluster()
	clusterCount := (t.entryCount + perCluster - 1) / perCluster
	found := make([]uint32, 0, n)

	for c := uint32(0); c < clusterCount && uint32(len(found)) < n; c++ {
		entries, err := t.readCluster(t.firstCluster + c)
		if err != nil {
			return nil, err
		}
		for i, v := range entries {
			idx := c*perCluster + uint32(i)
			if idx >= t.entryCount {
				break
			}
			if v == entryFree {
				found = append(found, idx)
				if uint32(len(found)) == n {
					break
				}
			}
		}
	}
	if uint32(len(found)) < n {
		return nil, errors.New(errors.NotEnoughDiskSpace, "fat: not enough free clusters")
	}
	reserved := make(map[uint32]uint32, len(found))
	for _, idx := range found {
		reserved[idx] = entryReserved
	}
	if err := t.setEntriesLocked(reserved); err != nil {
		return nil, err
	}
	return found, nil
}

// Chain links entries head-to-tail, terminating the last in EOF, and
// persists the result as a single batch.
func (t *AllocTable) Chain(entries []uint32) *errors.Error {
	if len(entries) == 0 {
		return nil
	}
	values := make(map[uint32]uint32, len(entries))
	for i := 0; i < len(entries)-1; i++ {
		values[entries[i]] = entries[i+1]
	}
	values[entries[len(entries)-1]] = entryEOF
	return t.setEntries(values)
}

// Follow walks the chain starting at head until EOF, returning the full
// cluster list including head.
func (t *AllocTable) Follow(head uint32) ([]uint32, *errors.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var chain []uint32
	cur := head
	for cur != entryEOF {
		chain = append(chain, cur)
		c := t.clusterForEntry(cur)
		entries, err := t.readCluster(c)
		if err != nil {
			return nil, err
		}
		next := entries[cur%t.entriesPerCluster()]
		if next == entryFree || next == entryReserved {
			return nil, errors.New(errors.IOError, "fat: broken allocation chain")
		}
		cur = next
	}
	return chain, nil
}

// Free marks every entry in the slice FREE in a single batch.
func (t *AllocTable) Free(entries []uint32) *errors.Error {
	if len(entries) == 0 {
		return nil
	}
	return t.setAll(entries, entryFree)
}
