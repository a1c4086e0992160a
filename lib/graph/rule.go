// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// Rule relates a non-empty set of input nodes to a non-empty set of
// output nodes via a command. An empty command marks the rule phony:
// no process is spawned, and the builder reports it as succeeded and
// marks its outputs UP_TO_DATE once its inputs are built. Its outputs
// do not take their state from its inputs: Scan treats a phony rule
// like any other, and since no build is ever recorded for it in the
// hash cache, a scan always leaves it OUT_OF_DATE.
type Rule struct {
	inputs  []*Node
	outputs []*Node
	command string
	depfile string

	state State
}

// NewRule constructs a Rule linking inputs to outputs. Inputs and
// outputs must each be non-empty and disjoint from each other, per
// the data model invariants; violating either is a construction
// error surfaced by the graph file loader, not a panic here, since a
// malformed graph file is user error, not a program invariant
// violation.
func NewRule(inputs, outputs []*Node) (*Rule, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("graph: rule has no inputs")
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("graph: rule has no outputs")
	}
	seen := make(map[*Node]bool, len(inputs))
	for _, n := range inputs {
		seen[n] = true
	}
	for _, n := range outputs {
		if seen[n] {
			return nil, fmt.Errorf("graph: node %q is both an input and an output of the same rule", n.Path)
		}
	}

	r := &Rule{
		inputs:  append([]*Node(nil), inputs...),
		outputs: append([]*Node(nil), outputs...),
		state:   OutOfDate,
	}
	for _, n := range inputs {
		n.AddParentRule(r)
	}
	for _, n := range outputs {
		n.SetChild(r)
	}
	return r, nil
}

// Inputs returns the rule's input nodes.
func (r *Rule) Inputs() []*Node { return r.inputs }

// Outputs returns the rule's output nodes.
func (r *Rule) Outputs() []*Node { return r.outputs }

// IsInput reports whether node is one of the rule's inputs.
func (r *Rule) IsInput(node *Node) bool {
	for _, n := range r.inputs {
		if n == node {
			return true
		}
	}
	return false
}

// IsPhony reports whether the rule has no command.
func (r *Rule) IsPhony() bool { return r.command == "" }

// Command returns the rule's shell command, or "" if phony.
func (r *Rule) Command() string { return r.command }

// SetCommand sets the rule's shell command.
func (r *Rule) SetCommand(cmd string) { r.command = cmd }

// HasDepfile reports whether the rule declares an implicit
// dependency file.
func (r *Rule) HasDepfile() bool { return r.depfile != "" }

// Depfile returns the rule's depfile path, or "" if none.
func (r *Rule) Depfile() string { return r.depfile }

// SetDepfile sets the rule's depfile path.
func (r *Rule) SetDepfile(path string) { r.depfile = path }

// State returns the rule's aggregated state: OUT_OF_DATE iff at
// least one output is OUT_OF_DATE (I5).
func (r *Rule) State() State { return r.state }

// SetState sets the rule's state directly, without propagation. Used
// by the dependency scan (C3) to seed initial state before calling
// MarkDirty on the rule's outputs.
func (r *Rule) SetState(s State) { r.state = s }

// MarkDirty marks every output of the rule OUT_OF_DATE, which in turn
// propagates to their own parent rules (see Node.MarkDirty).
func (r *Rule) MarkDirty() {
	r.state = OutOfDate
	for _, o := range r.outputs {
		o.MarkDirty()
	}
}

// recomputeState derives r.state from its outputs' current states,
// maintaining I5. Called by Node.MarkUpToDate after an output
// transitions to UP_TO_DATE.
func (r *Rule) recomputeState() {
	for _, o := range r.outputs {
		if o.State() == OutOfDate {
			r.state = OutOfDate
			return
		}
	}
	r.state = UpToDate
}
