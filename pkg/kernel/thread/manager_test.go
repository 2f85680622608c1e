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

package thread_test

import (
	"testing"
	"time"

	"github.com/sushionthefork/fav-os/pkg/hal"
	"github.com/sushionthefork/fav-os/pkg/kernel/thread"
)

// noopOwner satisfies thread.Owner without driving any process cleanup, for
// tests that only exercise the thread manager itself.
type noopOwner struct{ notified chan uint64 }

func (o *noopOwner) NotifyThreadTerminated(tcb *thread.TCB) {
	if o.notified != nil {
		o.notified <- tcb.ID()
	}
}

type fixedResolver map[string]hal.ThreadFunc

func (r fixedResolver) Resolve(name string) (hal.ThreadFunc, bool) {
	fn, ok := r[name]
	return fn, ok
}

func TestExitThenReadExitCode(t *testing.T) {
	m := thread.NewManager()
	owner := &noopOwner{notified: make(chan uint64, 1)}

	resolver := fixedResolver{"exit7": func(tid uint64, regs *hal.Registers) {
		m.Exit(tid, 7)
	}}
	tcb, err := m.Create(owner, resolver, "exit7", &hal.Registers{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	<-tcb.Done()
	code, ok := m.ReadExitCode(tcb.ID())
	if !ok || code != 7 {
		t.Fatalf("ReadExitCode = (%d, %v), want (7, true)", code, ok)
	}

	select {
	case got := <-owner.notified:
		if got != tcb.ID() {
			t.Fatalf("notified tid = %d, want %d", got, tcb.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestReadExitCodeReportsTerminated(t *testing.T) {
	m := thread.NewManager()
	owner := &noopOwner{}

	done := make(chan struct{})
	resolver := fixedResolver{"block": func(tid uint64, regs *hal.Registers) {
		<-done
	}}
	tcb, err := m.Create(owner, resolver, "block", &hal.Registers{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, ok := m.ReadExitCode(tcb.ID()); ok {
		t.Fatal("ReadExitCode reported terminated before the thread exited")
	}
	close(done)

	<-tcb.Done()
	code, ok := m.ReadExitCode(tcb.ID())
	if !ok || code != 0 {
		t.Fatalf("ReadExitCode = (%d, %v), want (0, true)", code, ok)
	}
}

func TestWaitForAnyAlreadyTerminated(t *testing.T) {
	m := thread.NewManager()
	owner := &noopOwner{}

	resolver := fixedResolver{"fast": func(tid uint64, regs *hal.Registers) {}}
	target, err := m.Create(owner, resolver, "fast", &hal.Registers{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-target.Done()

	caller, err := m.Create(owner, fixedResolver{"wait": func(tid uint64, regs *hal.Registers) {}}, "wait", &hal.Registers{})
	if err != nil {
		t.Fatalf("Create caller: %v", err)
	}

	got, werr := m.WaitForAny(caller.ID(), []uint64{target.ID()})
	if werr != nil {
		t.Fatalf("WaitForAny: %v", werr)
	}
	if got != target.ID() {
		t.Fatalf("WaitForAny = %d, want %d", got, target.ID())
	}
}

func TestWaitForAnyBlocksUntilExit(t *testing.T) {
	m := thread.NewManager()
	owner := &noopOwner{}

	release := make(chan struct{})
	resolver := fixedResolver{"blocker": func(tid uint64, regs *hal.Registers) {
		<-release
	}}
	target, err := m.Create(owner, resolver, "blocker", &hal.Registers{})
	if err != nil {
		t.Fatalf("Create target: %v", err)
	}
	caller, err := m.Create(owner, fixedResolver{"idle": func(tid uint64, regs *hal.Registers) {}}, "idle", &hal.Registers{})
	if err != nil {
		t.Fatalf("Create caller: %v", err)
	}
	<-caller.Done()

	result := make(chan uint64, 1)
	go func() {
		got, werr := m.WaitForAny(caller.ID(), []uint64{target.ID()})
		if werr != nil {
			t.Errorf("WaitForAny: %v", werr)
			return
		}
		result <- got
	}()

	select {
	case <-result:
		t.Fatal("WaitForAny returned before the target terminated")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case got := <-result:
		if got != target.ID() {
			t.Fatalf("WaitForAny = %d, want %d", got, target.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for WaitForAny to unblock")
	}
}
