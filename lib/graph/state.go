// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph implements the dependency graph data model: Nodes,
// Rules, and the Graph that owns them, together with dirty/up-to-date
// state propagation, cycle detection, and the initial dependency scan.
package graph

// State is the dirty/up-to-date status of a Node or a Rule.
type State int

const (
	// UpToDate means the node's file on disk matches what its rule
	// would produce, or the rule's outputs are all up to date.
	UpToDate State = iota
	// OutOfDate means the node or rule must be (re)built.
	OutOfDate
)

func (s State) String() string {
	switch s {
	case UpToDate:
		return "UP_TO_DATE"
	case OutOfDate:
		return "OUT_OF_DATE"
	default:
		return "UNKNOWN"
	}
}
