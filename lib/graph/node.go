// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graph

// Node represents a file path in the dependency graph. A Node is
// generated by at most one Rule (its child); if it has none, it is a
// source. A Node may be consumed as an input by any number of Rules
// (its parents); if it has none, it is a root.
//
// Nodes are not safe for concurrent use. Callers (lib/daemon) must
// serialize all access to a Graph and its Nodes under a single lock.
type Node struct {
	// Path is the node's unique key within its Graph.
	Path string

	child   *Rule
	parents []*Rule

	state     State
	timestamp int64
	prevTS    int64
}

// NewNode creates a source node with no child rule and no parents.
func NewNode(path string) *Node {
	return &Node{Path: path, state: OutOfDate}
}

// Child returns the rule that produces this node, or nil if the node
// is a source.
func (n *Node) Child() *Rule { return n.child }

// SetChild sets the rule that produces this node.
func (n *Node) SetChild(r *Rule) { n.child = r }

// AddParentRule records r as consuming this node as an input.
func (n *Node) AddParentRule(r *Rule) { n.parents = append(n.parents, r) }

// Parents returns the rules that consume this node as an input.
func (n *Node) Parents() []*Rule { return n.parents }

// IsSource reports whether the node has no producing rule.
func (n *Node) IsSource() bool { return n.child == nil }

// IsRoot reports whether the node has no rule consuming it.
func (n *Node) IsRoot() bool { return len(n.parents) == 0 }

// State returns the node's current dirty/up-to-date state.
func (n *Node) State() State { return n.state }

// SetState sets the node's state directly, without propagation. Used
// by the dependency scan (C3) to seed initial state before calling
// MarkDirty/MarkUpToDate.
func (n *Node) SetState(s State) { n.state = s }

// Timestamp returns the last timestamp recorded for this node during
// the current daemon run.
func (n *Node) Timestamp() int64 { return n.timestamp }

// PreviousTimestamp returns the timestamp recorded the last time the
// daemon successfully built (or scanned) this node.
func (n *Node) PreviousTimestamp() int64 { return n.prevTS }

// UpdateTimestamp records a new current timestamp for the node,
// shifting the previous one down.
func (n *Node) UpdateTimestamp(ts int64) {
	n.prevTS = n.timestamp
	n.timestamp = ts
}

// MarkDirty sets the node OUT_OF_DATE and recursively marks every
// parent rule (and, through each parent rule's other outputs, their
// transitive parents) OUT_OF_DATE. Idempotent: a node that is already
// OUT_OF_DATE returns immediately without re-walking the graph (L1).
func (n *Node) MarkDirty() {
	if n.state == OutOfDate {
		return
	}
	n.state = OutOfDate
	for _, r := range n.parents {
		// r has just gained an OUT_OF_DATE output (n), so r itself is
		// OUT_OF_DATE regardless of its other outputs.
		r.state = OutOfDate
		for _, out := range r.outputs {
			out.MarkDirty()
		}
	}
}

// MarkUpToDate sets the node UP_TO_DATE. It propagates to the node's
// producing rule only if every sibling output of that rule is also
// UP_TO_DATE, keeping the invariant "a rule is OUT_OF_DATE iff at
// least one output is OUT_OF_DATE" (I5) intact.
func (n *Node) MarkUpToDate() {
	n.state = UpToDate
	if n.child != nil {
		n.child.recomputeState()
	}
}
