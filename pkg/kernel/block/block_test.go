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

package block_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sushionthefork/fav-os/pkg/kernel/block"
)

func TestClusterRoundTrip(t *testing.T) {
	dev := block.NewMemDevice(512, 64)
	a := block.New(dev, 2)

	if got := a.ClusterSize(); got != 1024 {
		t.Fatalf("ClusterSize() = %d, want 1024", got)
	}

	want := bytes.Repeat([]byte{0xAB}, int(a.ClusterSize()))
	if err := a.WriteClusters(3, 1, want); err != nil {
		t.Fatalf("WriteClusters: %v", err)
	}

	got := make([]byte, a.ClusterSize())
	if err := a.ReadClusters(3, 1, got); err != nil {
		t.Fatalf("ReadClusters: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back %x, want %x", got, want)
	}
}

func TestOutOfRangeFails(t *testing.T) {
	dev := block.NewMemDevice(512, 4)
	a := block.New(dev, 1)
	buf := make([]byte, 512)
	if err := a.ReadClusters(100, 1, buf); err == nil {
		t.Fatal("expected IOError reading out of range cluster")
	}
}

// TestFileDeviceReadWriteRoundTrip exercises OpenFileDevice's sector I/O
// against a real host file.
func TestFileDeviceReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := block.OpenFileDevice(path, 512, 4)
	if err != nil {
		t.Fatalf("OpenFileDevice: %v", err)
	}
	defer dev.Close()

	want := bytes.Repeat([]byte{0xCD}, 512)
	if ok := dev.WriteSectors(1, 1, want); !ok {
		t.Fatal("WriteSectors failed")
	}
	got := make([]byte, 512)
	if ok := dev.ReadSectors(1, 1, got); !ok {
		t.Fatal("ReadSectors failed")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back %x, want %x", got, want)
	}
}

// TestFileDeviceRefusesConcurrentOpen exercises the exclusive-lock
// enforcement: a second OpenFileDevice on the same path must fail while the
// first is still open.
func TestFileDeviceRefusesConcurrentOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	first, err := block.OpenFileDevice(path, 512, 4)
	if err != nil {
		t.Fatalf("OpenFileDevice (first): %v", err)
	}
	defer first.Close()

	if _, err := block.OpenFileDevice(path, 512, 4); err == nil {
		t.Fatal("second OpenFileDevice on the same path unexpectedly succeeded")
	}
}

// TestFileDeviceAllowsReopenAfterClose exercises that Close releases the
// lock so a later mount can succeed.
func TestFileDeviceAllowsReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	first, err := block.OpenFileDevice(path, 512, 4)
	if err != nil {
		t.Fatalf("OpenFileDevice (first): %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := block.OpenFileDevice(path, 512, 4)
	if err != nil {
		t.Fatalf("OpenFileDevice (second, after close): %v", err)
	}
	second.Close()
}
