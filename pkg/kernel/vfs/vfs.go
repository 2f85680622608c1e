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

// Package vfs is the kernel-wide virtual file system: it owns the mount
// table and the open-file table that coalesces descriptors referring to the
// same path onto one shared object. It has no notion of "process" at all;
// per-process state (the descriptor table, working directory) lives one
// layer up in pkg/kernel/process, and every operation here that touches
// descriptors takes the caller's *DescriptorTable explicitly — this is the
// "per-process descriptor table" of the data model, not a single kernel-wide
// one. pkg/kernel/process additionally calls back into the narrow
// OpenDirectoryRef / CloseDirectoryRef surface this package exports to hold
// a working-directory reference open without publishing a descriptor.
package vfs

import (
	"sync"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/klog"
)

// MaxFSRegistered and MaxFSMounted bound the filesystem-type registry and
// the live mount table, mirroring the compile-time table sizes the rest of
// the kernel uses.
const (
	MaxFSRegistered = 8
	MaxFSMounted    = 8
)

// VFS is the process-wide virtual file system service. It is constructed
// once during kernel init and handed to the syscall dispatcher and the
// process manager; see pkg/kernel/process for the lifecycle ordering.
type VFS struct {
	mounts *MountTable

	fsMu       sync.Mutex
	registered map[string]FileSystemFactory

	openMu sync.Mutex
	open   map[string]*FileObject // absolute path -> shared file object
}

// New constructs an empty VFS: no mounts, no registered filesystems, no
// open files.
func New() *VFS {
	return &VFS{
		mounts:     NewMountTable(),
		registered: make(map[string]FileSystemFactory),
		open:       make(map[string]*FileObject),
	}
}

// RegisterFileSystem binds a filesystem type name to the factory that
// builds a Mount for it, so Mount can be driven by name without vfs
// importing any concrete driver package.
func (v *VFS) RegisterFileSystem(name string, factory FileSystemFactory) *errors.Error {
	v.fsMu.Lock()
	defer v.fsMu.Unlock()
	if len(v.registered) >= MaxFSRegistered {
		return errors.New(errors.OutOfMemory, "vfs: filesystem registry full")
	}
	if _, ok := v.registered[name]; ok {
		return errors.New(errors.InvalidArgument, "vfs: filesystem already registered: "+name)
	}
	v.registered[name] = factory
	return nil
}

// Mount instantiates the filesystem registered under fsName and registers
// it in the mount table under label.
func (v *VFS) Mount(fsName, label string) *errors.Error {
	v.fsMu.Lock()
	factory, ok := v.registered[fsName]
	v.fsMu.Unlock()
	if !ok {
		return errors.New(errors.FileNotFound, "vfs: no such filesystem: "+fsName)
	}
	m, err := factory()
	if err != nil {
		return err
	}
	return v.mounts.Mount(namedMount{Mount: m, label: label})
}

// namedMount overrides Label so a single factory-produced Mount can be
// registered under a caller-chosen label distinct from the filesystem's
// own default.
type namedMount struct {
	Mount
	label string
}

func (n namedMount) Label() string { return n.label }

// MountDirect registers an already-constructed Mount directly, bypassing
// the factory registry. cmd/miniker uses it for both its FAT volume and the
// stdio mount.
func (v *VFS) MountDirect(m Mount) *errors.Error {
	return v.mounts.Mount(m)
}

func (v *VFS) lookupOpen(path string) (*FileObject, bool) {
	v.openMu.Lock()
	defer v.openMu.Unlock()
	f, ok := v.open[path]
	return f, ok
}

func (v *VFS) cache(path string, f *FileObject) {
	v.openMu.Lock()
	defer v.openMu.Unlock()
	v.open[path] = f
}

func (v *VFS) decache(path string) {
	v.openMu.Lock()
	defer v.openMu.Unlock()
	delete(v.open, path)
}

func capsFor(attrs uint8) Caps {
	c := Caps(0)
	if attrs&AttrReadOnly != 0 {
		c |= CapRead
	} else {
		c |= CapRead | CapWrite
	}
	return c
}

// File attribute bits, mirrored from the original kernel's NFile_Attributes.
const (
	AttrReadOnly  uint8 = 1 << iota
	AttrDirectory
	AttrSystem
)

// Open resolves path (relative to cwd when it carries no mount-label
// prefix), coalescing onto an existing open-file-table entry when present,
// and returns a freshly published descriptor index.
func (v *VFS) Open(fds *DescriptorTable, rawPath string, cwd Path, attrs uint8) (int, *errors.Error) {
	fd, rerr := fds.Reserve()
	if rerr != nil {
		return -1, rerr
	}
	ok := false
	defer func() {
		if !ok {
			fds.Release(fd)
		}
	}()

	path, perr := Normalize(rawPath, cwd)
	if perr != nil {
		return -1, perr
	}
	key := path.String()

	file, cached := v.lookupOpen(key)
	if !cached {
		m, merr := v.mounts.Lookup(path.Mount)
		if merr != nil {
			return -1, merr
		}
		backend, oerr := m.OpenFile(path, attrs)
		if oerr != nil {
			return -1, oerr
		}
		if attrs&AttrDirectory != 0 && !backend.IsDirectory() {
			return -1, errors.New(errors.FileNotFound, "vfs: not a directory: "+key)
		}
		file = &FileObject{Path: key, Backend: backend}
		v.cache(key, file)
	}

	caps := capsFor(attrs)
	if caps&CapWrite != 0 && file.Backend.ReadOnly() {
		return -1, errors.New(errors.PermissionDenied, "vfs: write requested on read-only file: "+key)
	}

	file.addRefs(caps)
	fds.Publish(fd, file, caps)
	ok = true
	return fd, nil
}

// Create creates path fresh. If a same-named entry exists but is not
// currently open, it is evicted from the open-file table and the backend
// is told to overwrite it; if it is open, creation is refused.
func (v *VFS) Create(fds *DescriptorTable, rawPath string, cwd Path, attrs uint8) (int, *errors.Error) {
	fd, rerr := fds.Reserve()
	if rerr != nil {
		return -1, rerr
	}
	ok := false
	defer func() {
		if !ok {
			fds.Release(fd)
		}
	}()

	path, perr := Normalize(rawPath, cwd)
	if perr != nil {
		return -1, perr
	}
	key := path.String()

	if existing, cached := v.lookupOpen(key); cached {
		if reads, writes := existing.Refs(); reads+writes > 0 {
			return -1, errors.New(errors.PermissionDenied, "vfs: create on open file: "+key)
		}
		v.decache(key)
	}

	m, merr := v.mounts.Lookup(path.Mount)
	if merr != nil {
		return -1, merr
	}
	backend, cerr := m.CreateFile(path, attrs)
	if cerr != nil {
		return -1, cerr
	}

	file := &FileObject{Path: key, Backend: backend}
	v.cache(key, file)

	caps := capsFor(attrs)
	file.addRefs(caps)
	fds.Publish(fd, file, caps)
	ok = true
	return fd, nil
}

// Close releases fd: the table slot is freed, the backend is notified, the
// reference counts are dropped, and if they reach zero the file is evicted
// from the open-file table. The table lock is released (inside
// DescriptorTable.Close) before the backend callback runs, which is what
// lets a pipe or directory backend call back into the VFS without
// deadlocking on the descriptor-table lock.
func (v *VFS) Close(fds *DescriptorTable, fd int) *errors.Error {
	d, err := fds.Close(fd)
	if err != nil {
		return err
	}
	d.File.Backend.Close(d.Caps)
	if d.File.dropRefs(d.Caps) {
		v.decache(d.File.Path)
	}
	return nil
}

// Read reads from fd at its current position and advances it.
func (v *VFS) Read(fds *DescriptorTable, fd int, buf []byte) (int, *errors.Error) {
	d, err := fds.Get(fd)
	if err != nil {
		return 0, err
	}
	if d.Caps&CapRead == 0 {
		return 0, errors.New(errors.PermissionDenied, "vfs: fd not open for read")
	}
	n, rerr := d.File.Backend.Read(buf, d.Pos)
	if rerr != nil {
		return n, rerr
	}
	fds.SetPos(fd, d.Pos+int64(n))
	return n, nil
}

// Write writes to fd at its current position and advances it.
func (v *VFS) Write(fds *DescriptorTable, fd int, buf []byte) (int, *errors.Error) {
	d, err := fds.Get(fd)
	if err != nil {
		return 0, err
	}
	if d.Caps&CapWrite == 0 {
		return 0, errors.New(errors.PermissionDenied, "vfs: fd not open for write")
	}
	n, werr := d.File.Backend.Write(buf, d.Pos)
	if werr != nil {
		return n, werr
	}
	fds.SetPos(fd, d.Pos+int64(n))
	return n, nil
}

// Seek recomputes fd's position from base and offset. End is defined as
// exactly EOF (one past the last byte), not size-1.
func (v *VFS) Seek(fds *DescriptorTable, fd int, offset int64, whence Whence) *errors.Error {
	d, err := fds.Get(fd)
	if err != nil {
		return err
	}
	var base int64
	switch whence {
	case Beginning:
		base = 0
	case Current:
		base = d.Pos
	case End:
		base = d.File.Backend.Size()
	default:
		return errors.New(errors.InvalidArgument, "vfs: bad whence")
	}
	pos := base + offset
	if pos < 0 || pos > d.File.Backend.Size() {
		return errors.New(errors.IOError, "vfs: seek out of range")
	}
	return fds.SetPos(fd, pos)
}

// Resize recomputes a target size the same way Seek computes a position,
// then delegates to the backend.
func (v *VFS) Resize(fds *DescriptorTable, fd int, offset int64, whence Whence) *errors.Error {
	d, err := fds.Get(fd)
	if err != nil {
		return err
	}
	if d.Caps&CapWrite == 0 {
		return errors.New(errors.PermissionDenied, "vfs: fd not open for write")
	}
	var base int64
	switch whence {
	case Beginning:
		base = 0
	case Current:
		base = d.Pos
	case End:
		base = d.File.Backend.Size()
	default:
		return errors.New(errors.InvalidArgument, "vfs: bad whence")
	}
	target := base + offset
	if target < 0 {
		return errors.New(errors.InvalidArgument, "vfs: negative size")
	}
	return d.File.Backend.Resize(target)
}

// Delete removes path from its mount, refusing if it is currently open.
func (v *VFS) Delete(rawPath string, cwd Path) *errors.Error {
	path, perr := Normalize(rawPath, cwd)
	if perr != nil {
		return perr
	}
	key := path.String()

	if existing, cached := v.lookupOpen(key); cached {
		if reads, writes := existing.Refs(); reads+writes > 0 {
			return errors.New(errors.PermissionDenied, "vfs: delete on open file: "+key)
		}
		v.decache(key)
	}

	m, merr := v.mounts.Lookup(path.Mount)
	if merr != nil {
		return merr
	}
	return m.DeleteFile(path)
}

// CreatePipe allocates two descriptor slots and fills them with the writer
// and reader backends newPipe returns: the writer slot carries CapWrite and
// the reader slot CapRead. newPipe is passed in by the caller (the syscall
// dispatcher's PipeFactory), so this package does not import pkg/kernel/pipe,
// which itself depends on vfs.
func (v *VFS) CreatePipe(fds *DescriptorTable, newPipe func() (writer, reader Backend)) (writeFD, readFD int, err *errors.Error) {
	wfd, err := fds.Reserve()
	if err != nil {
		return -1, -1, err
	}
	rfd, err := fds.Reserve()
	if err != nil {
		fds.Release(wfd)
		return -1, -1, err
	}

	wBackend, rBackend := newPipe()
	wFile := &FileObject{Backend: wBackend}
	rFile := &FileObject{Backend: rBackend}
	wFile.addRefs(CapWrite)
	rFile.addRefs(CapRead)
	fds.Publish(wfd, wFile, CapWrite)
	fds.Publish(rfd, rFile, CapRead)
	return wfd, rfd, nil
}

// OpenDirectoryRef opens path as a persistent directory reference, used by
// the process manager to hold a working-directory reference open without
// publishing a descriptor for it.
func (v *VFS) OpenDirectoryRef(rawPath string, cwd Path) (*FileObject, Path, *errors.Error) {
	path, perr := Normalize(rawPath, cwd)
	if perr != nil {
		return nil, Path{}, perr
	}
	key := path.String()

	file, cached := v.lookupOpen(key)
	if !cached {
		m, merr := v.mounts.Lookup(path.Mount)
		if merr != nil {
			return nil, Path{}, merr
		}
		backend, oerr := m.OpenFile(path, AttrDirectory|AttrReadOnly)
		if oerr != nil {
			return nil, Path{}, oerr
		}
		if !backend.IsDirectory() {
			return nil, Path{}, errors.New(errors.FileNotFound, "vfs: not a directory: "+key)
		}
		file = &FileObject{Path: key, Backend: backend}
		v.cache(key, file)
	}
	file.addRefs(CapRead)
	return file, path, nil
}

// CloseDirectoryRef releases a reference opened by OpenDirectoryRef.
func (v *VFS) CloseDirectoryRef(file *FileObject) {
	if file.dropRefs(CapRead) {
		v.decache(file.Path)
	}
}

// Shutdown logs a summary of still-open files at kernel shutdown; it does
// not force-close anything, since that is the process manager's job via
// each PCB's own descriptor set.
func (v *VFS) Shutdown() {
	v.openMu.Lock()
	n := len(v.open)
	v.openMu.Unlock()
	if n > 0 {
		klog.Warningf("vfs: shutdown with %d file(s) still cached", n)
	}
}
