// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon composes the dependency graph (lib/graph), the
// stream server (lib/stream) and the builder (lib/builder) into the
// single long-lived instance that cmd/falcond serves over the RPC
// and stream ports. Every exported method is safe for concurrent use.
package daemon

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/adrienconrath/Falcon/lib/builder"
	"github.com/adrienconrath/Falcon/lib/graph"
	"github.com/adrienconrath/Falcon/lib/graphprint"
	"github.com/adrienconrath/Falcon/lib/hashcache"
	"github.com/adrienconrath/Falcon/lib/stream"
)

// Status reports whether the daemon is currently running a build.
type Status int

const (
	Idle Status = iota
	Building
)

func (s Status) String() string {
	if s == Building {
		return "BUILDING"
	}
	return "IDLE"
}

// ErrBusy is returned by StartBuild when a build is already running.
var ErrBusy = errors.New("daemon: a build is already in progress")

// ErrTargetNotFound is returned by SetDirty when the named path is
// not a node in the graph.
var ErrTargetNotFound = errors.New("daemon: target not found")

// Daemon is the build daemon's single instance, composing a graph,
// its builder, and the stream server that reports build progress.
type Daemon struct {
	g      *graph.Graph
	build  builder.Builder
	stream *stream.Server
	cache  *hashcache.Store
	logger *slog.Logger

	mu     *sync.Mutex
	status Status

	shutdownOnce sync.Once
	done         chan struct{}
}

// New constructs a Daemon. g, build and streamServer must already be
// wired together (build's consumer is streamServer; build operates on
// g). cache is saved to disk after every build completes. mu must be
// the same mutex build serializes its own graph-state mutations
// under (lib/builder.New takes it as its graphMu parameter), so a
// build running on its own goroutine can never race an RPC-triggered
// GetDirtySources, GetGraphviz or SetDirty.
func New(g *graph.Graph, build builder.Builder, streamServer *stream.Server, cache *hashcache.Store, logger *slog.Logger, mu *sync.Mutex) *Daemon {
	return &Daemon{
		g:      g,
		build:  build,
		stream: streamServer,
		cache:  cache,
		logger: logger,
		mu:     mu,
		done:   make(chan struct{}),
	}
}

// StartBuild begins a build of every root node in the graph. Returns
// ErrBusy if a build is already running.
func (d *Daemon) StartBuild(ctx context.Context) error {
	d.mu.Lock()
	if d.status == Building {
		d.mu.Unlock()
		return ErrBusy
	}
	d.status = Building
	targets := d.rootNodesLocked()
	d.mu.Unlock()

	d.build.StartBuild(ctx, targets)
	go d.awaitCompletion()
	return nil
}

func (d *Daemon) awaitCompletion() {
	d.build.Wait()

	d.mu.Lock()
	d.status = Idle
	d.mu.Unlock()

	if err := d.cache.Save(); err != nil && d.logger != nil {
		d.logger.Error("failed to persist hash cache after build", "error", err)
	}
}

// GetStatus reports whether a build is currently running.
func (d *Daemon) GetStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// InterruptBuild asks the current build to stop. Idempotent: safe to
// call whether or not a build is running.
func (d *Daemon) InterruptBuild() {
	d.build.Interrupt()
}

// GetDirtySources returns the paths of every source node whose state
// is OUT_OF_DATE, sorted for deterministic output.
func (d *Daemon) GetDirtySources() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var dirty []string
	for n := range d.g.Sources() {
		if n.State() == graph.OutOfDate {
			dirty = append(dirty, n.Path)
		}
	}
	sort.Strings(dirty)
	return dirty
}

// SetDirty marks the node at target OUT_OF_DATE, propagating to every
// rule (and their outputs) that transitively depends on it. Returns
// ErrTargetNotFound if target is not a node in the graph.
func (d *Daemon) SetDirty(target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.g.Node(target)
	if !ok {
		return ErrTargetNotFound
	}
	n.MarkDirty()
	return nil
}

// GetGraphviz serialises the graph as a Graphviz dot document. The
// graph's mutex is held for the duration of serialisation so the
// rendered snapshot is internally consistent.
func (d *Daemon) GetGraphviz() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := graphprint.WriteGraphviz(d.g, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Shutdown interrupts any in-flight build, stops the stream server,
// and signals Done. Safe to call more than once.
func (d *Daemon) Shutdown() {
	d.build.Interrupt()
	d.stream.Stop()
	d.shutdownOnce.Do(func() { close(d.done) })
}

// Done returns a channel closed once Shutdown has been called, so
// cmd/falcond's main loop knows to stop serving the RPC and stream
// ports and exit.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

func (d *Daemon) rootNodesLocked() []*graph.Node {
	roots := make([]*graph.Node, 0, len(d.g.Roots()))
	for n := range d.g.Roots() {
		roots = append(roots, n)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Path < roots[j].Path })
	return roots
}
