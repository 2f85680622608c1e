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

// Package syscall is the kernel's single entry point for user threads: a
// thin switch over the major/minor opcode pair carried in hal.Registers. It
// holds no state of its own beyond references to the VFS, process manager
// and pipe factory; every operation ultimately calls straight through to
// those services, translating their typed errors into regs.Err and their
// results into regs.Return.
package syscall

import (
	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/hal"
	"github.com/sushionthefork/fav-os/pkg/kernel/process"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

// Major opcode categories.
const (
	MajorFS uint8 = iota
	MajorProcess
)

// Minor opcodes under MajorFS.
const (
	FSOpen uint8 = iota
	FSCreate
	FSClose
	FSRead
	FSWrite
	FSSeek
	FSResize
	FSDelete
	FSCreatePipe
	FSSetWorkingDirectory
	FSGetWorkingDirectory
)

// Minor opcodes under MajorProcess.
const (
	ProcClone uint8 = iota
	ProcExit
	ProcWaitFor
	ProcRegisterSignalHandler
	ProcReadExitCode
	ProcShutdown
)

// PipeFactory builds the two backends for a freshly created pipe; it is
// supplied at Dispatcher construction time so this package does not need to
// import pkg/kernel/pipe directly, mirroring how vfs.CreatePipe takes the
// same hook.
type PipeFactory func() (writer, reader vfs.Backend)

// Dispatcher wires the syscall surface to the kernel's core services. There
// is exactly one per kernel instance, constructed after the thread, process
// and VFS managers and handed to every user thread's entrypoint.
type Dispatcher struct {
	vfs     *vfs.VFS
	procs   *process.Manager
	newPipe PipeFactory
}

// New returns a Dispatcher bound to the given services.
func New(v *vfs.VFS, procs *process.Manager, newPipe PipeFactory) *Dispatcher {
	return &Dispatcher{vfs: v, procs: procs, newPipe: newPipe}
}

// Handle dispatches regs.Major/regs.Minor on behalf of callerTid, filling in
// regs.Return and regs.Err. It never panics: an unrecognized opcode pair is
// reported as InvalidArgument like any other malformed request.
func (d *Dispatcher) Handle(callerTid uint64, regs *hal.Registers) {
	switch regs.Major {
	case MajorFS:
		d.handleFS(callerTid, regs)
	case MajorProcess:
		d.handleProcess(callerTid, regs)
	default:
		fail(regs, errors.New(errors.InvalidArgument, "syscall: unknown major opcode"))
	}
}

func ok(regs *hal.Registers, value int64) {
	regs.Return = value
	regs.Err = nil
}

func fail(regs *hal.Registers, err *errors.Error) {
	regs.Return = -1
	regs.Err = err
}

func (d *Dispatcher) pcb(callerTid uint64) (*process.PCB, *errors.Error) {
	pcb, found := d.procs.PCBForThread(callerTid)
	if !found {
		return nil, errors.New(errors.InvalidArgument, "syscall: caller has no process")
	}
	return pcb, nil
}

func argString(regs *hal.Registers, i int) (string, *errors.Error) {
	if i >= len(regs.Args) {
		return "", errors.New(errors.InvalidArgument, "syscall: missing argument")
	}
	s, ok := regs.Args[i].(string)
	if !ok {
		return "", errors.New(errors.InvalidArgument, "syscall: argument is not a string")
	}
	return s, nil
}

func argUint8(regs *hal.Registers, i int) (uint8, *errors.Error) {
	if i >= len(regs.Args) {
		return 0, errors.New(errors.InvalidArgument, "syscall: missing argument")
	}
	switch v := regs.Args[i].(type) {
	case uint8:
		return v, nil
	case int:
		return uint8(v), nil
	default:
		return 0, errors.New(errors.InvalidArgument, "syscall: argument is not an attribute byte")
	}
}

func argInt(regs *hal.Registers, i int) (int, *errors.Error) {
	if i >= len(regs.Args) {
		return 0, errors.New(errors.InvalidArgument, "syscall: missing argument")
	}
	switch v := regs.Args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, errors.New(errors.InvalidArgument, "syscall: argument is not an integer")
	}
}

func argBytes(regs *hal.Registers, i int) ([]byte, *errors.Error) {
	if i >= len(regs.Args) {
		return nil, errors.New(errors.InvalidArgument, "syscall: missing argument")
	}
	b, ok := regs.Args[i].([]byte)
	if !ok {
		return nil, errors.New(errors.InvalidArgument, "syscall: argument is not a buffer")
	}
	return b, nil
}

func (d *Dispatcher) handleFS(callerTid uint64, regs *hal.Registers) {
	pcb, perr := d.pcb(callerTid)
	if perr != nil {
		fail(regs, perr)
		return
	}
	cwd := pcb.WorkingDirectory()

	switch regs.Minor {
	case FSOpen:
		path, err := argString(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		attrs, err := argUint8(regs, 1)
		if err != nil {
			fail(regs, err)
			return
		}
		fd, oerr := d.vfs.Open(pcb.Descriptors, path, cwd, attrs)
		if oerr != nil {
			fail(regs, oerr)
			return
		}
		ok(regs, int64(fd))

	case FSCreate:
		path, err := argString(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		attrs, err := argUint8(regs, 1)
		if err != nil {
			fail(regs, err)
			return
		}
		fd, cerr := d.vfs.Create(pcb.Descriptors, path, cwd, attrs)
		if cerr != nil {
			fail(regs, cerr)
			return
		}
		ok(regs, int64(fd))

	case FSClose:
		fd, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		if cerr := d.vfs.Close(pcb.Descriptors, fd); cerr != nil {
			fail(regs, cerr)
			return
		}
		ok(regs, 0)

	case FSRead:
		fd, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		buf, err := argBytes(regs, 1)
		if err != nil {
			fail(regs, err)
			return
		}
		n, rerr := d.vfs.Read(pcb.Descriptors, fd, buf)
		if rerr != nil {
			fail(regs, rerr)
			return
		}
		ok(regs, int64(n))

	case FSWrite:
		fd, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		buf, err := argBytes(regs, 1)
		if err != nil {
			fail(regs, err)
			return
		}
		n, werr := d.vfs.Write(pcb.Descriptors, fd, buf)
		if werr != nil {
			fail(regs, werr)
			return
		}
		ok(regs, int64(n))

	case FSSeek:
		fd, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		offset, err := argInt(regs, 1)
		if err != nil {
			fail(regs, err)
			return
		}
		whence, err := argInt(regs, 2)
		if err != nil {
			fail(regs, err)
			return
		}
		if serr := d.vfs.Seek(pcb.Descriptors, fd, int64(offset), vfs.Whence(whence)); serr != nil {
			fail(regs, serr)
			return
		}
		ok(regs, 0)

	case FSResize:
		fd, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		offset, err := argInt(regs, 1)
		if err != nil {
			fail(regs, err)
			return
		}
		whence, err := argInt(regs, 2)
		if err != nil {
			fail(regs, err)
			return
		}
		if rerr := d.vfs.Resize(pcb.Descriptors, fd, int64(offset), vfs.Whence(whence)); rerr != nil {
			fail(regs, rerr)
			return
		}
		ok(regs, 0)

	case FSDelete:
		path, err := argString(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		if derr := d.vfs.Delete(path, cwd); derr != nil {
			fail(regs, derr)
			return
		}
		ok(regs, 0)

	case FSCreatePipe:
		wfd, rfd, perr := d.vfs.CreatePipe(pcb.Descriptors, func() (vfs.Backend, vfs.Backend) {
			return d.newPipe()
		})
		if perr != nil {
			fail(regs, perr)
			return
		}
		regs.Args[0] = wfd
		regs.Args[1] = rfd
		ok(regs, 0)

	case FSSetWorkingDirectory:
		path, err := argString(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		if serr := d.procs.SetWorkingDirectory(pcb, path); serr != nil {
			fail(regs, serr)
			return
		}
		ok(regs, 0)

	case FSGetWorkingDirectory:
		buf, err := argBytes(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		s := pcb.WorkingDirectory().String()
		n := copy(buf, s)
		ok(regs, int64(n))

	default:
		fail(regs, errors.New(errors.InvalidArgument, "syscall: unknown fs minor opcode"))
	}
}

func (d *Dispatcher) handleProcess(callerTid uint64, regs *hal.Registers) {
	switch regs.Minor {
	case ProcClone:
		name, err := argString(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		pid, tid, cerr := d.procs.Clone(callerTid, name, regs)
		if cerr != nil {
			fail(regs, cerr)
			return
		}
		regs.Args[0] = pid
		ok(regs, int64(tid))

	case ProcExit:
		code, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		d.procs.Exit(callerTid, code)
		ok(regs, 0)

	case ProcWaitFor:
		tids, err := argTidSlice(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		terminated, werr := d.procs.WaitFor(callerTid, tids)
		if werr != nil {
			fail(regs, werr)
			return
		}
		ok(regs, int64(terminated))

	case ProcRegisterSignalHandler:
		fn, ok2 := regs.Args[0].(func())
		if !ok2 {
			fail(regs, errors.New(errors.InvalidArgument, "syscall: handler is not a func()"))
			return
		}
		if herr := d.procs.RegisterTerminateHandler(callerTid, fn); herr != nil {
			fail(regs, herr)
			return
		}
		ok(regs, 0)

	case ProcReadExitCode:
		tid, err := argInt(regs, 0)
		if err != nil {
			fail(regs, err)
			return
		}
		code, found := d.procs.ReadExitCode(uint64(tid))
		if !found {
			fail(regs, errors.New(errors.InvalidArgument, "syscall: thread not terminated"))
			return
		}
		ok(regs, int64(code))

	case ProcShutdown:
		d.procs.Shutdown()
		ok(regs, 0)

	default:
		fail(regs, errors.New(errors.InvalidArgument, "syscall: unknown process minor opcode"))
	}
}

func argTidSlice(regs *hal.Registers, i int) ([]uint64, *errors.Error) {
	if i >= len(regs.Args) {
		return nil, errors.New(errors.InvalidArgument, "syscall: missing argument")
	}
	switch v := regs.Args[i].(type) {
	case []uint64:
		return v, nil
	default:
		return nil, errors.New(errors.InvalidArgument, "syscall: argument is not a tid list")
	}
}
