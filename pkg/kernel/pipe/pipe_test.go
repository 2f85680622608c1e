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

package pipe_test

import (
	"bytes"
	"testing"

	"github.com/sushionthefork/fav-os/pkg/errors"
	"github.com/sushionthefork/fav-os/pkg/kernel/pipe"
)

func TestReadWriteFIFO(t *testing.T) {
	w, r := pipe.New(16)
	if _, err := w.Write([]byte("hello"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 5)
	n, err := r.Read(buf, 0)
	if err != nil || n != 5 {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if !bytes.Equal(buf, []byte("hello")) {
		t.Fatalf("got %q, want %q", buf, "hello")
	}
}

func TestCloseWriterYieldsEOF(t *testing.T) {
	w, r := pipe.New(16)
	w.Close(0)
	buf := make([]byte, 4)
	n, err := r.Read(buf, 0)
	if err != nil || n != 0 {
		t.Fatalf("Read after writer close: n=%d err=%v, want EOF", n, err)
	}
}

func TestCloseReaderYieldsBrokenPipe(t *testing.T) {
	w, r := pipe.New(16)
	r.Close(0)
	_, err := w.Write([]byte("x"), 0)
	if !errors.Is(err, errors.BrokenPipe) {
		t.Fatalf("Write after reader close: err=%v, want BrokenPipe", err)
	}
}

func TestBlockingTransfer(t *testing.T) {
	w, r := pipe.New(256)
	want := bytes.Repeat([]byte{0x5a}, 10*1024)
	done := make(chan struct{})
	go func() {
		sent := 0
		for sent < len(want) {
			end := sent + 256
			if end > len(want) {
				end = len(want)
			}
			n, err := w.Write(want[sent:end], 0)
			if err != nil {
				t.Errorf("Write: %v", err)
				return
			}
			sent += n
		}
		w.Close(0)
		close(done)
	}()

	got := make([]byte, 0, len(want))
	buf := make([]byte, 512)
	for {
		n, err := r.Read(buf, 0)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	<-done
	if !bytes.Equal(got, want) {
		t.Fatalf("received %d bytes, want %d matching bytes", len(got), len(want))
	}
}
