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

// Command miniker boots the kernel core against an in-memory disk (or, with
// -disk-image, a host file) and a single "init" entrypoint, exercising the
// full stack — FAT driver, VFS, pipes, thread and process managers, syscall
// dispatcher — the way an integration harness would. It is not a real
// bootloader: there is no hardware underneath it, only
// hal.BlockDevice/hal.Console implementations backed by host memory or a
// host file, and the terminal.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sushionthefork/fav-os/pkg/hal"
	"github.com/sushionthefork/fav-os/pkg/kernel/block"
	"github.com/sushionthefork/fav-os/pkg/kernel/fat"
	"github.com/sushionthefork/fav-os/pkg/kernel/pipe"
	"github.com/sushionthefork/fav-os/pkg/kernel/process"
	"github.com/sushionthefork/fav-os/pkg/kernel/stdio"
	"github.com/sushionthefork/fav-os/pkg/kernel/syscall"
	"github.com/sushionthefork/fav-os/pkg/kernel/thread"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
	"github.com/sushionthefork/fav-os/pkg/klog"
)

var (
	diskSectors   = flag.Uint64("disk-sectors", 8192, "sector count of the disk")
	sectorBytes   = flag.Uint("sector-bytes", 512, "bytes per sector")
	clusterSize   = flag.Uint("sectors-per-cluster", 1, "sectors per FAT cluster")
	maxProcesses  = flag.Int("max-processes", 64, "process table capacity")
	entrypointArg = flag.String("entrypoint", "init", "name of the registered program to start")
	verbose       = flag.Bool("v", false, "enable debug-level kernel logging")
	diskImage     = flag.String("disk-image", "", "path to a host file backing the disk (defaults to an in-memory disk)")
	logFile       = flag.String("log-file", "", "write kernel log output to this path (supports %TIMESTAMP% and %COMMAND%); defaults to stderr")
)

// console is a hal.Console backed by the host terminal.
type console struct{}

func (console) ReadConsole(buf []byte) (int, bool) {
	n, err := os.Stdin.Read(buf)
	return n, err == nil
}

func (console) WriteConsole(buf []byte) (int, bool) {
	n, err := os.Stdout.Write(buf)
	return n, err == nil
}

// registry is a hal.EntrypointResolver backed by a fixed map of named Go
// functions, standing in for the original's dynamic program loader.
type registry map[string]hal.ThreadFunc

func (r registry) Resolve(name string) (hal.ThreadFunc, bool) {
	fn, ok := r[name]
	return fn, ok
}

func main() {
	flag.Parse()

	if *verbose {
		klog.SetLevel(klog.Debug)
	}

	if f, err := klog.OpenFile(*logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, klog.PatternOpts{Command: *entrypointArg}); err != nil {
		fmt.Fprintf(os.Stderr, "miniker: opening log file: %v\n", err)
		os.Exit(1)
	} else if f != nil {
		defer f.Close()
		klog.SetOutput(f)
	}

	var backend hal.BlockDevice
	if *diskImage != "" {
		fd, err := block.OpenFileDevice(*diskImage, uint32(*sectorBytes), *diskSectors)
		if err != nil {
			fmt.Fprintf(os.Stderr, "miniker: %v\n", err)
			os.Exit(1)
		}
		defer fd.Close()
		backend = fd
	} else {
		backend = block.NewMemDevice(uint32(*sectorBytes), *diskSectors)
	}
	dev := block.New(backend, uint32(*clusterSize))

	v := vfs.New()

	fatMount, ferr := fat.Open("C", dev)
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "miniker: formatting disk: %v\n", ferr)
		os.Exit(1)
	}
	if err := v.MountDirect(fatMount); err != nil {
		fmt.Fprintf(os.Stderr, "miniker: mounting C: %v\n", err)
		os.Exit(1)
	}

	if err := v.MountDirect(stdio.New(console{})); err != nil {
		fmt.Fprintf(os.Stderr, "miniker: mounting stdio: %v\n", err)
		os.Exit(1)
	}

	// dispatch is filled in below; the registry's closures capture the
	// variable itself (not a snapshot), which is safe here because no
	// program runs before dispatch is assigned.
	var dispatch *syscall.Dispatcher
	resolver := registry{
		"init": func(tid uint64, regs *hal.Registers) { runInit(dispatch, tid, regs) },
	}

	threads := thread.NewManager()
	procs := process.New(threads, v, resolver, *maxProcesses)
	dispatch = syscall.New(v, procs, func() (vfs.Backend, vfs.Backend) {
		return pipe.NewBackends(pipe.DefaultCapacity)()
	})

	pid, tid, cerr := procs.Spawn(*entrypointArg, &hal.Registers{})
	if cerr != nil {
		fmt.Fprintf(os.Stderr, "miniker: starting %s: %v\n", *entrypointArg, cerr)
		os.Exit(1)
	}
	klog.Infof("miniker: started pid=%d tid=%d running %q", pid, tid, *entrypointArg)

	procs.Join(tid)
	procs.ReadExitCode(tid)

	procs.Shutdown()
	v.Shutdown()
}

// runInit is the sample init program: it opens stdout, writes a banner
// through the syscall surface (rather than calling the VFS directly, the
// way a user program would have to), and exits.
func runInit(d *syscall.Dispatcher, tid uint64, regs *hal.Registers) {
	open := &hal.Registers{Major: syscall.MajorFS, Minor: syscall.FSOpen, Args: [4]any{"stdio:stdout", uint8(0)}}
	d.Handle(tid, open)
	if open.Err != nil {
		return
	}
	fd := int(open.Return)

	msg := []byte("miniker: init running\n")
	write := &hal.Registers{Major: syscall.MajorFS, Minor: syscall.FSWrite, Args: [4]any{fd, msg}}
	d.Handle(tid, write)

	closeRegs := &hal.Registers{Major: syscall.MajorFS, Minor: syscall.FSClose, Args: [4]any{fd}}
	d.Handle(tid, closeRegs)

	exit := &hal.Registers{Major: syscall.MajorProcess, Minor: syscall.ProcExit, Args: [4]any{0}}
	d.Handle(tid, exit)
}
