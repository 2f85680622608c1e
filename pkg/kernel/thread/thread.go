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

// Package thread is the kernel's thread manager: it starts host goroutines
// running resolved entrypoints, tracks their TCBs in a tid-keyed map, and
// implements the wait-for-any primitive threads use to block on each
// other's termination. It has no notion of "process" — a thread only knows
// its Owner, a narrow callback interface the process manager implements —
// so that pkg/kernel/process can depend on this package without a cycle.
package thread

import "sync"

// State is a thread's lifecycle state.
type State int

const (
	Running State = iota
	Terminated
)

// Owner is notified when one of its threads finishes exiting (its code has
// been read and its TCB erased). The process manager implements this to
// drive check_process_state.
type Owner interface {
	NotifyThreadTerminated(tcb *TCB)
}

// TCB is a thread control block: a host goroutine handle in all but name,
// an identifier, lifecycle state, exit code, an optional cooperative
// terminate handler, and the waiter bookkeeping wait-for-any needs.
type TCB struct {
	mu sync.Mutex

	tid   uint64
	owner Owner

	state    State
	exitCode int

	terminateHandler func()

	waiters []uint64
	waitSem chan struct{} // non-nil while this TCB itself is inside Wait

	done chan struct{} // closed when the thread terminates; join point for shutdown
}

// ID returns the thread's identifier.
func (t *TCB) ID() uint64 { return t.tid }

// State returns the thread's current lifecycle state.
func (t *TCB) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetTerminateHandler installs fn as the cooperative shutdown callback.
func (t *TCB) SetTerminateHandler(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.terminateHandler = fn
}

// TerminateHandler returns the installed handler, or nil.
func (t *TCB) TerminateHandler() func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminateHandler
}

// Done returns a channel closed once the thread has terminated, the
// closest equivalent this kernel has to joining a host thread.
func (t *TCB) Done() <-chan struct{} { return t.done }
