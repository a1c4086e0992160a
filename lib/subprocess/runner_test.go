// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package subprocess

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	stdout []byte
	stderr []byte
}

func (s *recordingSink) WriteStdout(_ uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout = append(s.stdout, data...)
}

func (s *recordingSink) WriteStderr(_ uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stderr = append(s.stderr, data...)
}

func TestRunnerRunSucceeds(t *testing.T) {
	t.Parallel()

	r := New()
	sink := &recordingSink{}
	status := r.Run(context.Background(), "echo -n hello; echo -n world >&2", "", nil, 1, sink)

	if status != SUCCEEDED {
		t.Fatalf("status = %v, want SUCCEEDED", status)
	}
	if string(sink.stdout) != "hello" {
		t.Errorf("stdout = %q, want %q", sink.stdout, "hello")
	}
	if string(sink.stderr) != "world" {
		t.Errorf("stderr = %q, want %q", sink.stderr, "world")
	}
}

func TestRunnerRunFails(t *testing.T) {
	t.Parallel()

	r := New()
	status := r.Run(context.Background(), "exit 1", "", nil, 2, &recordingSink{})
	if status != FAILED {
		t.Fatalf("status = %v, want FAILED", status)
	}
}

func TestRunnerEnv(t *testing.T) {
	t.Parallel()

	r := New()
	sink := &recordingSink{}
	status := r.Run(context.Background(), `echo -n "$GREETING"`, "", map[string]string{"GREETING": "hi"}, 3, sink)

	if status != SUCCEEDED {
		t.Fatalf("status = %v, want SUCCEEDED", status)
	}
	if string(sink.stdout) != "hi" {
		t.Errorf("stdout = %q, want %q", sink.stdout, "hi")
	}
}

func TestRunnerInterrupt(t *testing.T) {
	t.Parallel()

	r := New()
	done := make(chan ExitStatus, 1)
	go func() {
		done <- r.Run(context.Background(), "trap 'exit 130' INT; sleep 30", "", nil, 4, &recordingSink{})
	}()

	// Give the child time to install its trap before signalling.
	time.Sleep(200 * time.Millisecond)
	r.Interrupt()

	select {
	case status := <-done:
		if status != INTERRUPTED {
			t.Fatalf("status = %v, want INTERRUPTED", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Interrupt")
	}
}
