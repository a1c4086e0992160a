// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adrienconrath/Falcon/lib/graph"
	"github.com/adrienconrath/Falcon/lib/hashcache"
	"github.com/adrienconrath/Falcon/lib/stream"
)

// fakeBuilder is a minimal builder.Builder whose completion is
// controlled by the test via the release channel.
type fakeBuilder struct {
	mu          sync.Mutex
	started     bool
	interrupted bool
	release     chan struct{}
	done        chan struct{}
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{release: make(chan struct{}), done: make(chan struct{})}
}

func (f *fakeBuilder) StartBuild(ctx context.Context, targets []*graph.Node) {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	go func() {
		<-f.release
		close(f.done)
	}()
}

func (f *fakeBuilder) Interrupt() {
	f.mu.Lock()
	f.interrupted = true
	f.mu.Unlock()
	select {
	case <-f.release:
	default:
		close(f.release)
	}
}

func (f *fakeBuilder) Wait() { <-f.done }

func (f *fakeBuilder) Result() stream.Result { return stream.SUCCEEDED }

func testDaemon(t *testing.T) (*Daemon, *fakeBuilder) {
	t.Helper()
	g := graph.New()
	g.AddNode(graph.NewNode("root.txt"))
	g.Finalize()

	cache, err := hashcache.Load(filepath.Join(t.TempDir(), "cache.cbor"))
	if err != nil {
		t.Fatalf("hashcache.Load: %v", err)
	}

	fb := newFakeBuilder()
	d := New(g, fb, stream.NewServer(), cache, nil, &sync.Mutex{})
	return d, fb
}

func TestStartBuildRejectsConcurrentBuild(t *testing.T) {
	t.Parallel()

	d, fb := testDaemon(t)
	if err := d.StartBuild(context.Background()); err != nil {
		t.Fatalf("first StartBuild: %v", err)
	}
	if err := d.StartBuild(context.Background()); err != ErrBusy {
		t.Fatalf("second StartBuild = %v, want ErrBusy", err)
	}

	close(fb.release)
	waitForIdle(t, d)
}

func TestStartBuildReturnsToIdleAfterCompletion(t *testing.T) {
	t.Parallel()

	d, fb := testDaemon(t)
	if err := d.StartBuild(context.Background()); err != nil {
		t.Fatalf("StartBuild: %v", err)
	}
	if d.GetStatus() != Building {
		t.Fatalf("GetStatus() = %v, want Building", d.GetStatus())
	}

	close(fb.release)
	waitForIdle(t, d)
}

func TestSetDirtyUnknownTarget(t *testing.T) {
	t.Parallel()

	d, _ := testDaemon(t)
	if err := d.SetDirty("does-not-exist"); err != ErrTargetNotFound {
		t.Fatalf("SetDirty = %v, want ErrTargetNotFound", err)
	}
}

func TestGetDirtySources(t *testing.T) {
	t.Parallel()

	d, _ := testDaemon(t)
	sources := d.GetDirtySources()
	if len(sources) != 1 || sources[0] != "root.txt" {
		t.Errorf("GetDirtySources() = %v, want [root.txt]", sources)
	}
}

func waitForIdle(t *testing.T, d *Daemon) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.GetStatus() == Idle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("daemon did not return to Idle")
}
