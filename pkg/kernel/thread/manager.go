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

package thread

import (
	"sync"
	"sync/atomic"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/hal"
)

// Manager owns the tid -> TCB map. There is exactly one Manager for the
// whole kernel; it is constructed before the process manager, which holds
// a reference to it.
type Manager struct {
	mu      sync.Mutex
	threads map[uint64]*TCB
	nextTid uint64
}

// NewManager returns an empty thread manager.
func NewManager() *Manager {
	return &Manager{threads: make(map[uint64]*TCB)}
}

// Create resolves entrypoint through resolver and starts it on a new host
// goroutine, wrapped so that a plain return from the entrypoint terminates
// the thread with exit code 0 exactly as if it had called Exit(0). The
// resulting TCB is registered under a freshly allocated tid.
//
// The original assigns tids by hashing the host thread handle; Go has no
// stable, comparable handle for a goroutine, so this uses a monotonically
// increasing counter instead — the identifier's only contractual property
// (stable, unique, usable as a map key) is preserved.
func (m *Manager) Create(owner Owner, resolver hal.EntrypointResolver, entrypoint string, regs *hal.Registers) (*TCB, *errors.Error) {
	fn, ok := resolver.Resolve(entrypoint)
	if !ok {
		return nil, errors.New(errors.FileNotFound, "thread: no such entrypoint: "+entrypoint)
	}

	tid := atomic.AddUint64(&m.nextTid, 1)
	tcb := &TCB{tid: tid, owner: owner, state: Running, done: make(chan struct{})}

	m.mu.Lock()
	m.threads[tid] = tcb
	m.mu.Unlock()

	go func() {
		fn(tid, regs)
		m.Exit(tid, 0)
	}()

	return tcb, nil
}

// lookup returns the TCB for tid, if it is still registered.
func (m *Manager) lookup(tid uint64) (*TCB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tcb, ok := m.threads[tid]
	return tcb, ok
}

// Exit records code and flips tid to Terminated, signaling every thread
// currently waiting on it.
func (m *Manager) Exit(tid uint64, code int) {
	tcb, ok := m.lookup(tid)
	if !ok {
		return
	}

	tcb.mu.Lock()
	if tcb.state == Terminated {
		tcb.mu.Unlock()
		return
	}
	tcb.state = Terminated
	tcb.exitCode = code
	waiters := tcb.waiters
	tcb.waiters = nil
	tcb.mu.Unlock()
	close(tcb.done)

	for _, w := range waiters {
		if waiter, ok := m.lookup(w); ok {
			waiter.mu.Lock()
			sem := waiter.waitSem
			waiter.mu.Unlock()
			if sem != nil {
				select {
				case sem <- struct{}{}:
				default:
				}
			}
		}
	}
}

// WaitForAny blocks callerTid until any thread in tids has terminated,
// returning that thread's tid. It first scans for an already-terminated
// target and returns immediately if one is found; otherwise it registers
// the caller on every target's waiter list, blocks on the caller's own
// wait semaphore, then rescans to discover which target woke it and
// deregisters from the rest.
func (m *Manager) WaitForAny(callerTid uint64, tids []uint64) (uint64, *errors.Error) {
	if len(tids) == 0 {
		return 0, errors.New(errors.InvalidArgument, "thread: wait_for with no targets")
	}

	for _, tid := range tids {
		target, ok := m.lookup(tid)
		if !ok {
			return 0, errors.New(errors.InvalidArgument, "thread: no such thread: unknown tid")
		}
		if target.State() == Terminated {
			return tid, nil
		}
	}

	caller, ok := m.lookup(callerTid)
	if !ok {
		return 0, errors.New(errors.InvalidArgument, "thread: caller not registered")
	}

	caller.mu.Lock()
	caller.waitSem = make(chan struct{}, 1)
	sem := caller.waitSem
	caller.mu.Unlock()

	for _, tid := range tids {
		m.addWaiter(tid, callerTid, sem)
	}

	<-sem

	var terminated uint64
	for _, tid := range tids {
		if m.removeWaiterAndCheckTerminated(tid, callerTid) {
			terminated = tid
		}
	}

	caller.mu.Lock()
	caller.waitSem = nil
	caller.mu.Unlock()

	return terminated, nil
}

// addWaiter registers callerTid on tid's waiter list. If tid has already
// terminated by the time the registration lands, it signals sem directly
// rather than leaving the caller to block on an event that already fired.
func (m *Manager) addWaiter(tid, callerTid uint64, sem chan struct{}) {
	target, ok := m.lookup(tid)
	if !ok {
		select {
		case sem <- struct{}{}:
		default:
		}
		return
	}
	target.mu.Lock()
	terminated := target.state == Terminated
	if !terminated {
		target.waiters = append(target.waiters, callerTid)
	}
	target.mu.Unlock()
	if terminated {
		select {
		case sem <- struct{}{}:
		default:
		}
	}
}

// removeWaiterAndCheckTerminated deregisters callerTid from tid's waiter
// list and reports whether tid is (now) terminated. A tid that has since
// been fully reaped (erased from the map) counts as terminated.
func (m *Manager) removeWaiterAndCheckTerminated(tid, callerTid uint64) bool {
	target, ok := m.lookup(tid)
	if !ok {
		return true
	}
	target.mu.Lock()
	defer target.mu.Unlock()
	for i, w := range target.waiters {
		if w == callerTid {
			target.waiters = append(target.waiters[:i], target.waiters[i+1:]...)
			break
		}
	}
	return target.state == Terminated
}

// ReadExitCode reports whether tid has terminated; if so it copies out the
// exit code, erases the TCB, and notifies the owner so process cleanup can
// run.
func (m *Manager) ReadExitCode(tid uint64) (code int, ok bool) {
	tcb, found := m.lookup(tid)
	if !found {
		return 0, false
	}

	tcb.mu.Lock()
	if tcb.state != Terminated {
		tcb.mu.Unlock()
		return 0, false
	}
	code = tcb.exitCode
	tcb.mu.Unlock()

	m.mu.Lock()
	delete(m.threads, tid)
	m.mu.Unlock()

	tcb.owner.NotifyThreadTerminated(tcb)
	return code, true
}

// Done returns tid's join channel, for a caller that is not itself a
// kernel thread (the top-level kernel harness) to block until it
// terminates.
func (m *Manager) Done(tid uint64) (<-chan struct{}, bool) {
	tcb, ok := m.lookup(tid)
	if !ok {
		return nil, false
	}
	return tcb.Done(), true
}

// Count returns the number of threads still tracked (running or terminated
// but not yet reaped).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads)
}

// ForEach invokes fn for every currently tracked TCB, after releasing the
// map lock.
func (m *Manager) ForEach(fn func(tcb *TCB)) {
	m.mu.Lock()
	tcbs := make([]*TCB, 0, len(m.threads))
	for _, tcb := range m.threads {
		tcbs = append(tcbs, tcb)
	}
	m.mu.Unlock()
	for _, tcb := range tcbs {
		fn(tcb)
	}
}
