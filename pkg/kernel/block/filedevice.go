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

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/sushionthefork/fav-os/pkg/hal"
)

// FileDevice is a hal.BlockDevice backed by a host file standing in for a
// disk image. The spec's Non-goals rule out concurrent mounts of the same
// disk; FileDevice enforces that at the host level with an exclusive,
// non-blocking lock on a sidecar lock file, in the same spirit as the
// original's single-owner HDD HAL.
type FileDevice struct {
	f              *os.File
	lock           *flock.Flock
	bytesPerSector uint32
	sectorCount    uint64
}

// OpenFileDevice opens (creating if necessary) path as a disk image of
// sectorCount sectors of bytesPerSector bytes, growing or truncating it to
// that exact size, and takes an exclusive advisory lock on a sidecar lock
// file so a second process cannot mount the same image concurrently.
func OpenFileDevice(path string, bytesPerSector uint32, sectorCount uint64) (*FileDevice, error) {
	l := flock.New(path + ".lock")
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("block: locking disk image %q: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("block: disk image %q already mounted elsewhere", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		l.Unlock()
		return nil, fmt.Errorf("block: opening disk image %q: %w", path, err)
	}

	size := int64(bytesPerSector) * int64(sectorCount)
	if err := f.Truncate(size); err != nil {
		f.Close()
		l.Unlock()
		return nil, fmt.Errorf("block: sizing disk image %q: %w", path, err)
	}

	return &FileDevice{f: f, lock: l, bytesPerSector: bytesPerSector, sectorCount: sectorCount}, nil
}

// Close releases the host file and its advisory lock.
func (d *FileDevice) Close() error {
	d.lock.Unlock()
	return d.f.Close()
}

// DriveParameters implements hal.BlockDevice.
func (d *FileDevice) DriveParameters() hal.DriveParameters {
	return hal.DriveParameters{BytesPerSector: d.bytesPerSector, AbsoluteSectorCount: d.sectorCount}
}

// ReadSectors implements hal.BlockDevice.
func (d *FileDevice) ReadSectors(lba uint64, count uint32, buf []byte) bool {
	if lba+uint64(count) > d.sectorCount {
		return false
	}
	off := int64(lba) * int64(d.bytesPerSector)
	n := int(count) * int(d.bytesPerSector)
	_, err := d.f.ReadAt(buf[:n], off)
	return err == nil
}

// WriteSectors implements hal.BlockDevice.
func (d *FileDevice) WriteSectors(lba uint64, count uint32, buf []byte) bool {
	if lba+uint64(count) > d.sectorCount {
		return false
	}
	off := int64(lba) * int64(d.bytesPerSector)
	n := int(count) * int(d.bytesPerSector)
	_, err := d.f.WriteAt(buf[:n], off)
	return err == nil
}
