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
	"sync"

	"github.com/sushionthefork/fav-os/pkg/kernel/thread"
	"github.com/sushionthefork/fav-os/pkg/kernel/vfs"
)

// State is a process's lifecycle state.
type State int

const (
	Running State = iota
	Terminated
)

// PCB is a process control block: identity, parent/child links, its own
// descriptor table and working directory, and the set of threads running
// inside it. PCB implements thread.Owner so the thread manager can notify
// it when one of its threads finishes exiting, without the thread package
// needing to know this package exists.
type PCB struct {
	mu sync.Mutex

	mgr *Manager

	pid  int
	ppid int
	name string

	state    State
	children []int
	threads  []*thread.TCB

	Descriptors *vfs.DescriptorTable
	cwd         vfs.Path
	cwdRef      *vfs.FileObject
}

// PID returns the process's identifier.
func (p *PCB) PID() int { return p.pid }

// State returns the process's current lifecycle state.
func (p *PCB) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// WorkingDirectory returns the process's current working directory path.
func (p *PCB) WorkingDirectory() vfs.Path {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

// NotifyThreadTerminated implements thread.Owner.
func (p *PCB) NotifyThreadTerminated(tcb *thread.TCB) {
	p.mgr.checkProcessState(p)
}
