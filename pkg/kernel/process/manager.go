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

package process

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/hal"
	"github.com/sushionthefork/fav-os/pkg/kernel/thread"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
	"github.com/sushionthefork/fav-os/pkg/klog"
)

// Manager is the kernel-wide process table, guarded by a single lock that
// sits at the top of the lock order in §5: process-table, then
// thread-manager map, then the VFS tables, then per-file locks, then the
// disk. It is constructed once, after the thread manager and the VFS.
type Manager struct {
	mu       sync.Mutex
	table    map[int]*PCB
	tidToPid map[uint64]int

	pids     *PidManager
	threads  *thread.Manager
	vfs      *vfs.VFS
	resolver hal.EntrypointResolver

	shuttingDown int32

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New constructs the process manager, creates the pid-0 supervisor, and
// starts its reaper loop.
func New(threads *thread.Manager, vfsSvc *vfs.VFS, resolver hal.EntrypointResolver, maxProcesses int) *Manager {
	m := &Manager{
		table:      make(map[int]*PCB),
		tidToPid:   make(map[uint64]int),
		pids:       NewPidManager(maxProcesses),
		threads:    threads,
		vfs:        vfsSvc,
		resolver:   resolver,
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	m.pids.reserve(0)
	supervisor := &PCB{
		mgr:         m,
		pid:         0,
		ppid:        0,
		name:        "system",
		state:       Running,
		Descriptors: vfs.NewDescriptorTable(),
	}
	m.table[0] = supervisor
	go m.reap()
	return m
}

func (m *Manager) pcbForThread(tid uint64) (*PCB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, ok := m.tidToPid[tid]
	if !ok {
		return nil, false
	}
	pcb, ok := m.table[pid]
	return pcb, ok
}

// PCBForThread returns the process owning tid, for the syscall dispatcher to
// resolve a caller's working directory and descriptor table.
func (m *Manager) PCBForThread(tid uint64) (*PCB, bool) {
	return m.pcbForThread(tid)
}

// Exit terminates callerTid with code, delegating straight to the thread
// manager; process cleanup runs later, when the reaper drains its exit code.
func (m *Manager) Exit(callerTid uint64, code int) {
	m.threads.Exit(callerTid, code)
}

// WaitFor blocks callerTid until any of tids has terminated.
func (m *Manager) WaitFor(callerTid uint64, tids []uint64) (uint64, *errors.Error) {
	return m.threads.WaitForAny(callerTid, tids)
}

// Join blocks until tid terminates, for a caller outside the kernel thread
// model (the top-level harness starting the first process) to wait for it.
func (m *Manager) Join(tid uint64) {
	if done, ok := m.threads.Done(tid); ok {
		<-done
	}
}

// ReadExitCode reports tid's exit code if it has terminated, draining its
// TCB exactly as the reaper does.
func (m *Manager) ReadExitCode(tid uint64) (int, bool) {
	return m.threads.ReadExitCode(tid)
}

// RegisterTerminateHandler installs fn as callerTid's cooperative shutdown
// callback.
func (m *Manager) RegisterTerminateHandler(callerTid uint64, fn func()) *errors.Error {
	pcb, ok := m.pcbForThread(callerTid)
	if !ok {
		return errors.New(errors.InvalidArgument, "process: caller has no process")
	}
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	for _, t := range pcb.threads {
		if t.ID() == callerTid {
			t.SetTerminateHandler(fn)
			return nil
		}
	}
	return errors.New(errors.InvalidArgument, "process: no such thread in caller's process")
}

// Clone allocates a pid, builds a PCB linked under callerTid's process,
// inherits the caller's working directory, and delegates to the thread
// manager to start the initial thread running entrypoint.
func (m *Manager) Clone(callerTid uint64, entrypoint string, regs *hal.Registers) (pid int, tid uint64, err *errors.Error) {
	parent, ok := m.pcbForThread(callerTid)
	if !ok {
		return 0, 0, errors.New(errors.InvalidArgument, "process: caller has no process")
	}
	return m.cloneFromParent(parent, entrypoint, regs)
}

// Spawn starts entrypoint directly under the supervisor, for bootstrapping
// the first user process at kernel init — there is no caller thread yet for
// Clone to resolve a parent from.
func (m *Manager) Spawn(entrypoint string, regs *hal.Registers) (pid int, tid uint64, err *errors.Error) {
	m.mu.Lock()
	supervisor := m.table[0]
	m.mu.Unlock()
	return m.cloneFromParent(supervisor, entrypoint, regs)
}

func (m *Manager) cloneFromParent(parent *PCB, entrypoint string, regs *hal.Registers) (pid int, tid uint64, err *errors.Error) {
	newPid, ok := m.pids.Acquire()
	if !ok {
		return 0, 0, errors.New(errors.OutOfMemory, "process: process table full")
	}

	parentCwd := parent.WorkingDirectory()
	var cwdRef *vfs.FileObject
	if parentCwd.Mount != "" {
		ref, resolved, rerr := m.vfs.OpenDirectoryRef(parentCwd.String(), parentCwd)
		if rerr == nil {
			cwdRef = ref
			parentCwd = resolved
		}
	}

	pcb := &PCB{
		mgr:         m,
		pid:         newPid,
		ppid:        parent.pid,
		name:        entrypoint,
		state:       Running,
		Descriptors: vfs.NewDescriptorTable(),
		cwd:         parentCwd,
		cwdRef:      cwdRef,
	}

	m.mu.Lock()
	m.table[newPid] = pcb
	m.mu.Unlock()
	parent.mu.Lock()
	parent.children = append(parent.children, newPid)
	parent.mu.Unlock()

	// The process-table lock is held across thread creation so the new
	// thread cannot look up its own process before tidToPid records it.
	m.mu.Lock()
	tcb, terr := m.threads.Create(pcb, m.resolver, entrypoint, regs)
	if terr != nil {
		delete(m.table, newPid)
		m.mu.Unlock()
		m.pids.Release(newPid)
		return 0, 0, terr
	}

	pcb.mu.Lock()
	pcb.threads = append(pcb.threads, tcb)
	pcb.mu.Unlock()

	m.tidToPid[tcb.ID()] = newPid
	m.mu.Unlock()

	return newPid, tcb.ID(), nil
}

// SetWorkingDirectory opens rawPath as pcb's new working directory and only
// then releases the previous one, so that the open-file table retains the
// entry across the swap when the new and old paths coincide.
func (m *Manager) SetWorkingDirectory(pcb *PCB, rawPath string) *errors.Error {
	pcb.mu.Lock()
	oldCwd := pcb.cwd
	oldRef := pcb.cwdRef
	pcb.mu.Unlock()

	newRef, resolved, err := m.vfs.OpenDirectoryRef(rawPath, oldCwd)
	if err != nil {
		return err
	}

	pcb.mu.Lock()
	pcb.cwd = resolved
	pcb.cwdRef = newRef
	pcb.mu.Unlock()

	if oldRef != nil {
		m.vfs.CloseDirectoryRef(oldRef)
	}
	return nil
}

// checkProcessState detaches and erases every TERMINATED thread from pcb;
// once its thread list is empty, its still-live children are re-parented
// to its own parent and the PCB itself is removed and its pid released.
func (m *Manager) checkProcessState(pcb *PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pcb.mu.Lock()
	alive := pcb.threads[:0]
	for _, t := range pcb.threads {
		if t.State() == thread.Terminated {
			delete(m.tidToPid, t.ID())
		} else {
			alive = append(alive, t)
		}
	}
	pcb.threads = alive
	empty := len(pcb.threads) == 0
	if empty {
		pcb.state = Terminated
	}
	cwdRef := pcb.cwdRef
	pcb.cwdRef = nil
	pcb.mu.Unlock()

	if !empty {
		return
	}

	if cwdRef != nil {
		m.vfs.CloseDirectoryRef(cwdRef)
	}
	pcb.Descriptors.CloseAll(func(d vfs.Descriptor) {
		d.File.Backend.Close(d.Caps)
	})

	if parent, ok := m.table[pcb.ppid]; ok && parent.pid != pcb.pid {
		parent.mu.Lock()
		for i, c := range parent.children {
			if c == pcb.pid {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
		for _, c := range pcb.children {
			if child, ok := m.table[c]; ok && child.State() != Terminated {
				parent.children = append(parent.children, c)
				child.mu.Lock()
				child.ppid = parent.pid
				child.mu.Unlock()
			}
		}
		parent.mu.Unlock()
	}

	delete(m.table, pcb.pid)
	m.pids.Release(pcb.pid)
}

// reap is the supervisor's reaper thread: it periodically tries the
// process-table lock (yielding instead of blocking on contention, to avoid
// priority inversion with ordinary syscalls), collects every live
// descendant thread id, and drains their exit codes — which in turn drives
// checkProcessState.
func (m *Manager) reap() {
	defer close(m.reaperDone)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 20 * time.Millisecond

	for {
		select {
		case <-m.reaperStop:
			return
		default:
		}

		handles, ok := m.trySnapshotDescendants()
		if !ok {
			time.Sleep(b.NextBackOff())
			continue
		}
		b.Reset()

		for _, tid := range handles {
			m.threads.ReadExitCode(tid)
		}
		runtime.Gosched()
	}
}

// trySnapshotDescendants attempts the process-table lock without blocking
// and, on success, returns every thread id belonging to a descendant of the
// supervisor, walking the child lists breadth-first.
func (m *Manager) trySnapshotDescendants() ([]uint64, bool) {
	if !m.mu.TryLock() {
		return nil, false
	}
	defer m.mu.Unlock()

	supervisor := m.table[0]
	var handles []uint64
	pending := append([]int{}, supervisor.children...)
	for len(pending) > 0 {
		cpid := pending[0]
		pending = pending[1:]
		child, ok := m.table[cpid]
		if !ok {
			continue
		}
		child.mu.Lock()
		for _, t := range child.threads {
			handles = append(handles, t.ID())
		}
		pending = append(pending, child.children...)
		child.mu.Unlock()
	}
	return handles, true
}

// Shutdown sets the global shutdown flag and iterates every thread: the
// supervisor is joined; user threads with a registered terminate handler
// have it invoked and are then joined; threads without one are abandoned
// rather than joined, since Go offers no mechanism to force-terminate a
// running goroutine — the closest analogue to the original's hard kill.
func (m *Manager) Shutdown() {
	atomic.StoreInt32(&m.shuttingDown, 1)
	close(m.reaperStop)
	<-m.reaperDone

	m.mu.Lock()
	pcbs := make([]*PCB, 0, len(m.table))
	for _, pcb := range m.table {
		pcbs = append(pcbs, pcb)
	}
	m.mu.Unlock()

	for _, pcb := range pcbs {
		pcb.mu.Lock()
		tcbs := append([]*thread.TCB{}, pcb.threads...)
		isSupervisor := pcb.pid == 0
		pcb.mu.Unlock()

		for _, tcb := range tcbs {
			if isSupervisor {
				<-tcb.Done()
				m.threads.ReadExitCode(tcb.ID())
				continue
			}
			if handler := tcb.TerminateHandler(); handler != nil {
				handler()
				<-tcb.Done()
				m.threads.ReadExitCode(tcb.ID())
			} else {
				klog.Warningf("process: abandoning thread %d with no terminate handler", tcb.ID())
			}
		}
	}
}

// ShuttingDown reports whether Shutdown has been called.
func (m *Manager) ShuttingDown() bool {
	return atomic.LoadInt32(&m.shuttingDown) != 0
}
