// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package builder drives a graph.Graph through a subprocess.Runner,
// reporting progress to a stream.Consumer. GraphSequentialBuilder is
// the only implementation provided here; Builder is kept small enough
// that a parallel implementation could be added later without
// changing lib/daemon.
package builder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrienconrath/Falcon/lib/graph"
	"github.com/adrienconrath/Falcon/lib/hashcache"
	"github.com/adrienconrath/Falcon/lib/stream"
	"github.com/adrienconrath/Falcon/lib/subprocess"
)

// Builder drives one build of a target set at a time.
type Builder interface {
	// StartBuild begins building targets in the background. The
	// caller must call Wait before starting another build.
	StartBuild(ctx context.Context, targets []*graph.Node)
	// Interrupt asks the current build to stop as soon as possible.
	// Safe to call from another goroutine; a no-op if no build is
	// running.
	Interrupt()
	// Wait blocks until the current build finishes.
	Wait()
	// Result returns the outcome of the most recently finished build.
	Result() stream.Result
}

// GraphSequentialBuilder executes rules one at a time in post-order:
// a rule's inputs are fully built before the rule itself runs.
type GraphSequentialBuilder struct {
	graph    *graph.Graph
	runner   *subprocess.Runner
	consumer stream.Consumer
	cache    *hashcache.Store
	workDir  string

	// graphMu guards every read or write of Node/Rule state. It is
	// the same mutex lib/daemon serializes its own graph access
	// under (passed in by the caller that wires both together), so a
	// build's Node.MarkUpToDate calls can never race a concurrent
	// GetDirtySources/GetGraphviz/SetDirty.
	graphMu *sync.Mutex

	nextBuildID uint64
	interrupted atomic.Bool

	mu     sync.Mutex
	result stream.Result
	done   chan struct{}
}

// New constructs a GraphSequentialBuilder. g is mutated in place as
// rules complete (outputs transition to UP_TO_DATE); cache is updated
// and left for the caller to persist (lib/daemon saves it after every
// build). graphMu must be the same mutex the caller serializes all
// other access to g under.
func New(g *graph.Graph, runner *subprocess.Runner, consumer stream.Consumer, cache *hashcache.Store, workDir string, graphMu *sync.Mutex) *GraphSequentialBuilder {
	return &GraphSequentialBuilder{
		graph:    g,
		runner:   runner,
		consumer: consumer,
		cache:    cache,
		workDir:  workDir,
		graphMu:  graphMu,
	}
}

// StartBuild implements Builder.
func (b *GraphSequentialBuilder) StartBuild(ctx context.Context, targets []*graph.Node) {
	b.interrupted.Store(false)
	b.consumer.NewBuild(b.nextBuildID)
	b.nextBuildID++

	done := make(chan struct{})
	b.mu.Lock()
	b.done = done
	b.mu.Unlock()

	go b.run(ctx, targets, done)
}

// Interrupt implements Builder.
func (b *GraphSequentialBuilder) Interrupt() {
	b.interrupted.Store(true)
	b.runner.Interrupt()
}

// Wait implements Builder.
func (b *GraphSequentialBuilder) Wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Result implements Builder.
func (b *GraphSequentialBuilder) Result() stream.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

func (b *GraphSequentialBuilder) run(ctx context.Context, targets []*graph.Node, done chan<- struct{}) {
	r := &run{
		b:           b,
		ctx:         ctx,
		nodeVisited: make(map[*graph.Node]bool),
		ruleDone:    make(map[*graph.Rule]bool),
		result:      stream.SUCCEEDED,
	}
	for _, t := range targets {
		r.build(t)
		if r.aborted {
			break
		}
	}

	b.mu.Lock()
	b.result = r.result
	b.mu.Unlock()
	b.consumer.EndBuild(r.result)
	close(done)
}

// run holds the mutable state of a single build traversal. It is not
// safe for concurrent use — GraphSequentialBuilder only ever runs one
// at a time.
type run struct {
	b   *GraphSequentialBuilder
	ctx context.Context

	nodeVisited map[*graph.Node]bool
	ruleDone    map[*graph.Rule]bool

	cmdID   uint64
	result  stream.Result
	aborted bool
}

// build recursively builds n's child rule's inputs, then the rule
// itself, skipping nodes that are sources or already up to date.
func (r *run) build(n *graph.Node) {
	if r.aborted || r.nodeVisited[n] {
		return
	}
	r.nodeVisited[n] = true

	if r.b.interrupted.Load() {
		r.abort(stream.INTERRUPTED)
		return
	}
	if n.IsSource() || r.b.nodeUpToDate(n) {
		return
	}

	rule := n.Child()
	for _, in := range rule.Inputs() {
		r.build(in)
		if r.aborted {
			return
		}
	}
	r.execute(rule)
}

// execute runs rule exactly once per build, even if more than one of
// its outputs is reached by separate traversal paths.
func (r *run) execute(rule *graph.Rule) {
	if r.aborted || r.ruleDone[rule] {
		return
	}
	r.ruleDone[rule] = true

	if r.b.interrupted.Load() {
		r.abort(stream.INTERRUPTED)
		return
	}

	cmdID := r.cmdID
	r.cmdID++
	r.b.consumer.NewCommand(cmdID, rule.Command())

	if rule.IsPhony() {
		r.b.consumer.EndCommand(cmdID, subprocess.SUCCEEDED)
		r.b.markOutputsUpToDate(rule)
		return
	}

	status := r.b.runner.Run(r.ctx, rule.Command(), r.b.workDir, nil, cmdID, r.b.consumer)
	r.b.consumer.EndCommand(cmdID, status)

	switch status {
	case subprocess.SUCCEEDED:
		r.b.markOutputsUpToDate(rule)
		r.b.recordCacheEntry(rule)
	case subprocess.INTERRUPTED:
		r.abort(stream.INTERRUPTED)
	default: // FAILED, UNKNOWN
		if r.result == stream.SUCCEEDED {
			r.result = stream.FAILED
		}
		r.aborted = true
	}
}

// nodeUpToDate reports whether n is already built, under graphMu so
// it cannot race a concurrent daemon read or mutation of n's state.
func (b *GraphSequentialBuilder) nodeUpToDate(n *graph.Node) bool {
	b.graphMu.Lock()
	defer b.graphMu.Unlock()
	return n.State() == graph.UpToDate
}

// markOutputsUpToDate transitions every output of rule to UP_TO_DATE
// under graphMu, the same lock lib/daemon holds around
// GetDirtySources, GetGraphviz and SetDirty.
func (b *GraphSequentialBuilder) markOutputsUpToDate(rule *graph.Rule) {
	b.graphMu.Lock()
	defer b.graphMu.Unlock()
	for _, out := range rule.Outputs() {
		out.MarkUpToDate()
	}
}

func (r *run) abort(result stream.Result) {
	r.result = result
	r.aborted = true
}

// recordCacheEntry refreshes the persisted hash cache entry for a
// rule that just built successfully, so the next dependency scan
// (lib/graph.Scan) sees it as up to date.
func (b *GraphSequentialBuilder) recordCacheEntry(rule *graph.Rule) {
	hashes := make(map[string]hashcache.Hash, len(rule.Inputs()))
	for _, in := range rule.Inputs() {
		if h, err := hashcache.HashFile(in.Path); err == nil {
			hashes[in.Path] = h
		}
	}
	b.cache.Set(rule.Outputs()[0].Path, hashcache.Entry{
		Command:        rule.Command(),
		BuildTimestamp: time.Now().Unix(),
		InputHashes:    hashes,
	})
}
