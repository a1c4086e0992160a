// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"os"

	"github.com/adrienconrath/Falcon/lib/hashcache"
)

// DepfileResolver resolves the implicit inputs declared in a rule's
// depfile, folding them into the input set the scan compares against.
// Implemented by lib/graphfile; declared here as a small interface so
// this package does not depend on the file-parsing collaborator.
type DepfileResolver interface {
	ImplicitInputs(target string, depfile string) ([]string, error)
}

// Scan computes the initial dirty set for every rule in g by
// comparing the current state of the filesystem against the last
// known good state recorded in cache. It mutates g in place: a rule
// found stale has its outputs marked OUT_OF_DATE (which propagates to
// its consumers, see Rule.MarkDirty); a rule whose inputs, outputs and
// command are unchanged since its last recorded build is marked
// UP_TO_DATE.
//
// A rule is OUT_OF_DATE if it has no recorded build, its command
// string differs from the one last recorded, any input is missing, any
// declared output is missing or older than an input, or an input's
// timestamp moved past the rule's last recorded build time and its
// content hash no longer matches the one recorded then.
func Scan(g *Graph, cache *hashcache.Store, depfiles DepfileResolver) error {
	// Sources are scanned first so rules can rely on Node.Timestamp()
	// reflecting the current filesystem state.
	for _, n := range g.nodes {
		if n.IsSource() {
			stampSource(n)
		}
	}

	for _, r := range g.rules {
		if err := scanRule(r, cache, depfiles); err != nil {
			return err
		}
	}
	return nil
}

// stampSource records the current on-disk timestamp of a source
// node. A missing source file is left at timestamp 0, which the
// consuming rules will treat as a missing input (dirty).
func stampSource(n *Node) {
	info, err := os.Stat(n.Path)
	if err != nil {
		n.UpdateTimestamp(0)
		return
	}
	n.UpdateTimestamp(info.ModTime().Unix())
}

// cacheKey identifies a rule in the persisted hash cache by its first
// output path. Outputs are unique across a well-formed graph
// (lib/graphfile enforces this), so this is a stable, unambiguous key.
func cacheKey(r *Rule) string {
	return r.Outputs()[0].Path
}

func scanRule(r *Rule, cache *hashcache.Store, depfiles DepfileResolver) error {
	entry, hadEntry := cache.Get(cacheKey(r))

	inputs := append([]*Node(nil), r.Inputs()...)
	if r.HasDepfile() {
		implicit, err := depfiles.ImplicitInputs(cacheKey(r), r.Depfile())
		if err != nil {
			return err
		}
		for _, path := range implicit {
			// Implicit dependencies are compared by timestamp and
			// content hash only; they are not added to the rule's
			// static Inputs() list, since the depfile can change
			// between scans without altering the declared rule shape.
			inputs = append(inputs, &Node{Path: path})
		}
	}

	dirty := !hadEntry || entry.Command != r.Command()

	for _, in := range inputs {
		info, err := os.Stat(in.Path)
		if err != nil {
			dirty = true
			continue
		}
		if !hadEntry {
			continue
		}
		ts := info.ModTime().Unix()
		if ts <= entry.BuildTimestamp {
			continue
		}
		// The file moved past the last recorded build time. That is
		// often just a checkout resetting mtimes, so fall back to
		// content hashing before declaring the rule stale.
		hash, err := hashcache.HashFile(in.Path)
		if err != nil || hash != entry.InputHashes[in.Path] {
			dirty = true
		}
	}

	for _, out := range r.Outputs() {
		info, err := os.Stat(out.Path)
		if err != nil {
			dirty = true
			out.UpdateTimestamp(0)
			continue
		}
		out.UpdateTimestamp(info.ModTime().Unix())
		for _, in := range inputs {
			inInfo, err := os.Stat(in.Path)
			if err == nil && inInfo.ModTime().Unix() > info.ModTime().Unix() {
				dirty = true
			}
		}
	}

	if dirty {
		r.MarkDirty()
	} else {
		r.SetState(UpToDate)
		for _, out := range r.Outputs() {
			out.SetState(UpToDate)
		}
	}
	return nil
}
