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

// Package block adapts a raw hal.BlockDevice into the cluster-addressed
// primitive every higher layer (the FAT driver in particular) actually
// speaks. It is the only component that converts between sectors and
// clusters, and the only component that touches the device lock directly.
package block

import (
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/hal"
)

// Adapter serializes sector I/O against a single hal.BlockDevice behind a
// disk-wide mutex, matching the original hardware's single in-flight
// request semantics: concurrent VFS/FAT callers serialize at this boundary
// rather than at the device driver itself.
type Adapter struct {
	mu     sync.Mutex
	device hal.BlockDevice

	sectorsPerCluster uint32
	params            hal.DriveParameters
}

// New wraps device, addressing it in clusters of sectorsPerCluster sectors.
func New(device hal.BlockDevice, sectorsPerCluster uint32) *Adapter {
	return &Adapter{
		device:            device,
		sectorsPerCluster: sectorsPerCluster,
		params:            device.DriveParameters(),
	}
}

// SectorsPerCluster returns the configured cluster size in sectors.
func (a *Adapter) SectorsPerCluster() uint32 { return a.sectorsPerCluster }

// BytesPerSector returns the device's sector size.
func (a *Adapter) BytesPerSector() uint32 { return a.params.BytesPerSector }

// ClusterSize returns the size of one cluster in bytes.
func (a *Adapter) ClusterSize() uint32 { return a.sectorsPerCluster * a.params.BytesPerSector }

// DriveParameters returns the underlying device's geometry.
func (a *Adapter) DriveParameters() hal.DriveParameters { return a.params }

// ReadSectors reads count sectors starting at lba under the device lock.
func (a *Adapter) ReadSectors(lba uint64, count uint32, buf []byte) *errors.Error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.device.ReadSectors(lba, count, buf) {
		return errors.New(errors.IOError, "block: read sectors failed")
	}
	return nil
}

// WriteSectors writes count sectors starting at lba under the device lock.
func (a *Adapter) WriteSectors(lba uint64, count uint32, buf []byte) *errors.Error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.device.WriteSectors(lba, count, buf) {
		return errors.New(errors.IOError, "block: write sectors failed")
	}
	return nil
}

// ReadClusters reads count clusters starting at cluster firstCluster.
func (a *Adapter) ReadClusters(firstCluster uint64, count uint32, buf []byte) *errors.Error {
	return a.ReadSectors(firstCluster*uint64(a.sectorsPerCluster), count*a.sectorsPerCluster, buf)
}

// WriteClusters writes count clusters starting at cluster firstCluster.
func (a *Adapter) WriteClusters(firstCluster uint64, count uint32, buf []byte) *errors.Error {
	return a.WriteSectors(firstCluster*uint64(a.sectorsPerCluster), count*a.sectorsPerCluster, buf)
}
