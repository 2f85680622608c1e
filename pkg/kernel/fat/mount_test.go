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

package fat_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sushionthefork/fav-os/pkg/kernel/block"
	"github.com/sushionthefork/fav-os/pkg/kernel/fat"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

func newVolume(t *testing.T) *fat.Mount {
	t.Helper()
	dev := block.New(block.NewMemDevice(512, 8192), 1)
	m, err := fat.Open("C", dev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func path(dir []string, name string) vfs.Path {
	return vfs.Path{Mount: "C", Dir: dir, Name: name}
}

// TestCreateWriteReadRoundTrip exercises scenario 1 from the spec: create a
// nested file, write it, close, reopen, and read back the same bytes.
func TestCreateWriteReadRoundTrip(t *testing.T) {
	m := newVolume(t)

	backend, err := m.CreateFile(path([]string{"a"}, "b.txt"), 0)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	want := []byte("hello")
	if n, werr := backend.Write(want, 0); werr != nil || n != len(want) {
		t.Fatalf("Write: n=%d err=%v", n, werr)
	}
	backend.Close(vfs.CapWrite)

	backend, err = m.OpenFile(path([]string{"a"}, "b.txt"), 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if got := backend.Size(); got != int64(len(want)) {
		t.Fatalf("Size() = %d, want %d", got, len(want))
	}
	got := make([]byte, len(want))
	if n, rerr := backend.Read(got, 0); rerr != nil || n != len(want) {
		t.Fatalf("Read: n=%d err=%v", n, rerr)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back %q, want %q", got, want)
	}
}

// TestDirectoryCapacity exercises scenario 2: a directory holding
// MaxDirEntries files refuses a 22nd, but accepts one again after a
// deletion frees a slot.
func TestDirectoryCapacity(t *testing.T) {
	m := newVolume(t)

	if _, err := m.CreateFile(path(nil, "d"), fat.AttrDirectory); err != nil {
		t.Fatalf("CreateFile(d): %v", err)
	}

	for i := 0; i < fat.MaxDirEntries; i++ {
		name := fmt.Sprintf("f%d", i)
		if _, err := m.CreateFile(path([]string{"d"}, name), 0); err != nil {
			t.Fatalf("CreateFile(%s): %v", name, err)
		}
	}

	if _, err := m.CreateFile(path([]string{"d"}, "f21"), 0); err == nil {
		t.Fatalf("CreateFile(f21) unexpectedly succeeded in a full directory")
	}

	if err := m.DeleteFile(path([]string{"d"}, "f10")); err != nil {
		t.Fatalf("DeleteFile(f10): %v", err)
	}
	if _, err := m.CreateFile(path([]string{"d"}, "f21"), 0); err != nil {
		t.Fatalf("CreateFile(f21) after freeing a slot: %v", err)
	}
}

// TestResizeShrinkFreesClusters exercises scenario 6: shrinking a file to
// zero releases its allocation-table entries back to the pool, observable
// as being able to re-allocate the same space.
func TestResizeShrinkFreesClusters(t *testing.T) {
	m := newVolume(t)

	backend, err := m.CreateFile(path(nil, "x"), 0)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	payload := bytes.Repeat([]byte{0x42}, 10000)
	if _, werr := backend.Write(payload, 0); werr != nil {
		t.Fatalf("Write: %v", werr)
	}

	if err := backend.Resize(0); err != nil {
		t.Fatalf("Resize(0): %v", err)
	}
	if got := backend.Size(); got != 0 {
		t.Fatalf("Size() after Resize(0) = %d, want 0", got)
	}

	// The freed clusters must be reusable: writing a second, equally large
	// file must succeed rather than failing with NotEnoughDiskSpace.
	second, err := m.CreateFile(path(nil, "y"), 0)
	if err != nil {
		t.Fatalf("CreateFile(y): %v", err)
	}
	if _, werr := second.Write(payload, 0); werr != nil {
		t.Fatalf("Write(y) after freeing x's clusters: %v", werr)
	}
}

// TestDeleteNonEmptyDirectoryFails exercises the DirectoryNotEmpty edge
// case.
func TestDeleteNonEmptyDirectoryFails(t *testing.T) {
	m := newVolume(t)
	if _, err := m.CreateFile(path(nil, "d"), fat.AttrDirectory); err != nil {
		t.Fatalf("CreateFile(d): %v", err)
	}
	if _, err := m.CreateFile(path([]string{"d"}, "f"), 0); err != nil {
		t.Fatalf("CreateFile(d/f): %v", err)
	}
	if err := m.DeleteFile(path(nil, "d")); err == nil {
		t.Fatalf("DeleteFile(d) on a non-empty directory unexpectedly succeeded")
	}
}

// TestRemountSeesPersistedFiles exercises the format/mount/write/close/
// umount/mount/read round trip from the testable-properties list.
func TestRemountSeesPersistedFiles(t *testing.T) {
	dev := block.New(block.NewMemDevice(512, 8192), 1)
	m, err := fat.Open("C", dev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	backend, err := m.CreateFile(path(nil, "x"), 0)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	want := []byte("persisted")
	if _, werr := backend.Write(want, 0); werr != nil {
		t.Fatalf("Write: %v", werr)
	}
	backend.Close(vfs.CapWrite)

	// Re-open the same backing device fresh: the superblock tag must be
	// recognized so this mount does not reformat over the existing data.
	m2, err := fat.Open("C", dev)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	backend2, err := m2.OpenFile(path(nil, "x"), 0)
	if err != nil {
		t.Fatalf("OpenFile after remount: %v", err)
	}
	got := make([]byte, len(want))
	if _, rerr := backend2.Read(got, 0); rerr != nil {
		t.Fatalf("Read after remount: %v", rerr)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back %q after remount, want %q", got, want)
	}
}
