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

// Package fat implements the on-disk FAT-style filesystem driver: a
// superblock, a linked allocation table, flat-array directories, and
// cluster-addressed file data. It is grounded on the original kernel's
// fs_fat.cpp, translated from exception-based C++ into *errors.Error
// returns throughout.
package fat

import (
	"encoding/binary"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/block"
)

// tag identifies a formatted volume. A volume whose sector 0 does not start
// with this tag is treated as unformatted and is reformatted on mount.
var tag = [4]byte{'f', 'a', 't', 0}

const superblockSize = 40

// Superblock is the fixed-size record stored in cluster 0 of a formatted
// volume. FATCluster is always 1 (the allocation table immediately follows
// the superblock); it is still stored explicitly rather than assumed, since
// the original on-disk format documents it as a first-class field.
type Superblock struct {
	BytesPerSector    uint32
	SectorCount       uint64
	SectorsPerCluster uint32
	FATEntries        uint32
	FATCluster        uint32 // first cluster of the allocation table
	FATClusterCount   uint32 // number of clusters the allocation table occupies
	RootCluster       uint32
	DataFirstCluster  uint32
}

func (s *Superblock) marshal() []byte {
	buf := make([]byte, superblockSize)
	copy(buf[0:4], tag[:])
	binary.LittleEndian.PutUint32(buf[4:8], s.BytesPerSector)
	binary.LittleEndian.PutUint64(buf[8:16], s.SectorCount)
	binary.LittleEndian.PutUint32(buf[16:20], s.SectorsPerCluster)
	binary.LittleEndian.PutUint32(buf[20:24], s.FATEntries)
	binary.LittleEndian.PutUint32(buf[24:28], s.FATCluster)
	binary.LittleEndian.PutUint32(buf[28:32], s.FATClusterCount)
	binary.LittleEndian.PutUint32(buf[32:36], s.RootCluster)
	binary.LittleEndian.PutUint32(buf[36:40], s.DataFirstCluster)
	return buf
}

func unmarshalSuperblock(buf []byte) (*Superblock, bool) {
	if len(buf) < superblockSize || string(buf[0:3]) != "fat" {
		return nil, false
	}
	s := &Superblock{
		BytesPerSector:    binary.LittleEndian.Uint32(buf[4:8]),
		SectorCount:       binary.LittleEndian.Uint64(buf[8:16]),
		SectorsPerCluster: binary.LittleEndian.Uint32(buf[16:20]),
		FATEntries:        binary.LittleEndian.Uint32(buf[20:24]),
		FATCluster:        binary.LittleEndian.Uint32(buf[24:28]),
		FATClusterCount:   binary.LittleEndian.Uint32(buf[28:32]),
		RootCluster:       binary.LittleEndian.Uint32(buf[32:36]),
		DataFirstCluster:  binary.LittleEndian.Uint32(buf[36:40]),
	}
	return s, true
}

// readSuperblock reads and parses cluster 0.
func readSuperblock(dev *block.Adapter) (*Superblock, bool, *errors.Error) {
	buf := make([]byte, dev.ClusterSize())
	if err := dev.ReadClusters(0, 1, buf); err != nil {
		return nil, false, err
	}
	sb, ok := unmarshalSuperblock(buf)
	return sb, ok, nil
}

// writeSuperblock persists sb to cluster 0.
func writeSuperblock(dev *block.Adapter, sb *Superblock) *errors.Error {
	buf := make([]byte, dev.ClusterSize())
	copy(buf, sb.marshal())
	return dev.WriteClusters(0, 1, buf)
}

// formatLayout computes the FAT/root/data cluster layout for a freshly
// formatted volume, following the formula from spec §4.2.1 exactly.
func formatLayout(dev *block.Adapter) *Superblock {
	clusterSize := uint64(dev.ClusterSize())
	params := dev.DriveParameters()
	diskBytes := params.AbsoluteSectorCount * uint64(params.BytesPerSector)

	const reservedClusters = 2
	usable := diskBytes - reservedClusters*clusterSize

	fatEntries := usable / (uint64(dirEntrySize) + clusterSize)
	fatEntries -= (fatEntries * 4 % clusterSize) / 4
	fatClusterCount := (fatEntries*4 + clusterSize - 1) / clusterSize
	rootCluster := 1 + fatClusterCount
	dataFirstCluster := rootCluster + 1

	return &Superblock{
		BytesPerSector:    params.BytesPerSector,
		SectorCount:       params.AbsoluteSectorCount,
		SectorsPerCluster: dev.SectorsPerCluster(),
		FATEntries:        uint32(fatEntries),
		FATCluster:        1,
		FATClusterCount:   uint32(fatClusterCount),
		RootCluster:       uint32(rootCluster),
		DataFirstCluster:  uint32(dataFirstCluster),
	}
}
