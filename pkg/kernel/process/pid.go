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

// Package process is the kernel's process manager: process control blocks,
// parent/child links, the pid allocator, and the supervisor's reaper loop.
// It depends on pkg/kernel/thread for thread.TCB/thread.Manager and on
// pkg/kernel/vfs for per-process descriptor tables and working directories;
// neither of those packages depends back on this one.
package process

import "sync"

// PidManager tracks which pids in a fixed-capacity table are free, using a
// rotating cursor so repeated allocation/release doesn't always hand out
// the lowest free pid — grounded on process.cpp's CPid_Manager.
type PidManager struct {
	mu   sync.Mutex
	used []bool
	last int
	full bool
}

// NewPidManager returns a manager over capacity pid slots, 0..capacity-1.
func NewPidManager(capacity int) *PidManager {
	return &PidManager{used: make([]bool, capacity)}
}

// Acquire returns the next free pid starting just after the last one
// handed out, wrapping around the table once.
func (p *PidManager) Acquire() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return 0, false
	}

	p.last = (p.last + 1) % len(p.used)
	start := p.last
	for {
		if !p.used[p.last] {
			p.used[p.last] = true
			return p.last, true
		}
		p.last = (p.last + 1) % len(p.used)
		if p.last == start {
			break
		}
	}
	p.full = true
	return 0, false
}

// reserve marks pid used directly, bypassing the rotating scan. Used only
// to claim pid 0 for the supervisor at startup.
func (p *PidManager) reserve(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used[pid] = true
}

// Release frees pid. Pid 0 and the table's last slot can never be
// released — both are permanently reserved for the supervisor, mirroring
// process.cpp's Release_Pid bounds check exactly.
func (p *PidManager) Release(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pid > 0 && pid < len(p.used)-1 {
		p.used[pid] = false
		p.full = false
		return true
	}
	return false
}
