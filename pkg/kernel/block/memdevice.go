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

package block

import "github.com/sushionthefork/fav-os/pkg/hal"

// MemDevice is an in-memory hal.BlockDevice backing tests and the sample
// cmd/miniker binary. It has no relation to any real disk HAL; it exists so
// the FAT driver and VFS can be exercised without a host file descriptor.
type MemDevice struct {
	bytesPerSector uint32
	data           []byte
}

// NewMemDevice allocates sectorCount sectors of bytesPerSector bytes each,
// zero-initialized.
func NewMemDevice(bytesPerSector uint32, sectorCount uint64) *MemDevice {
	return &MemDevice{
		bytesPerSector: bytesPerSector,
		data:           make([]byte, bytesPerSector*uint32(sectorCount)),
	}
}

// DriveParameters implements hal.BlockDevice.
func (m *MemDevice) DriveParameters() hal.DriveParameters {
	return hal.DriveParameters{
		BytesPerSector:      m.bytesPerSector,
		AbsoluteSectorCount: uint64(len(m.data)) / uint64(m.bytesPerSector),
	}
}

// ReadSectors implements hal.BlockDevice.
func (m *MemDevice) ReadSectors(lba uint64, count uint32, buf []byte) bool {
	off := lba * uint64(m.bytesPerSector)
	n := uint64(count) * uint64(m.bytesPerSector)
	if off+n > uint64(len(m.data)) || uint64(len(buf)) < n {
		return false
	}
	copy(buf, m.data[off:off+n])
	return true
}

// WriteSectors implements hal.BlockDevice.
func (m *MemDevice) WriteSectors(lba uint64, count uint32, buf []byte) bool {
	off := lba * uint64(m.bytesPerSector)
	n := uint64(count) * uint64(m.bytesPerSector)
	if off+n > uint64(len(m.data)) || uint64(len(buf)) < n {
		return false
	}
	copy(m.data[off:off+n], buf)
	return true
}
