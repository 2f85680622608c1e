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

package process_test

import (
	"testing"

	"github.com/sushionthefork/fav-os/pkg/kernel/process"
)

func TestPidManagerRotatesAndExhausts(t *testing.T) {
	p := process.NewPidManager(3)

	first, ok := p.Acquire()
	if !ok || first != 1 {
		t.Fatalf("Acquire #1 = (%d, %v), want (1, true)", first, ok)
	}
	second, ok := p.Acquire()
	if !ok || second != 2 {
		t.Fatalf("Acquire #2 = (%d, %v), want (2, true)", second, ok)
	}
	third, ok := p.Acquire()
	if !ok || third != 0 {
		t.Fatalf("Acquire #3 = (%d, %v), want (0, true)", third, ok)
	}

	if _, ok := p.Acquire(); ok {
		t.Fatal("Acquire succeeded on a fully reserved table")
	}
}

func TestPidManagerReuseAfterRelease(t *testing.T) {
	p := process.NewPidManager(3)
	p.Acquire() // 1
	p.Acquire() // 2
	p.Acquire() // 0

	if !p.Release(1) {
		t.Fatal("Release(1) failed")
	}

	got, ok := p.Acquire()
	if !ok || got != 1 {
		t.Fatalf("Acquire after release = (%d, %v), want (1, true)", got, ok)
	}
}

func TestPidManagerPermanentReservations(t *testing.T) {
	p := process.NewPidManager(3)

	if p.Release(0) {
		t.Fatal("Release(0) unexpectedly succeeded: pid 0 must be permanently reserved")
	}
	if p.Release(2) {
		t.Fatal("Release(last slot) unexpectedly succeeded: it must be permanently reserved")
	}
}
