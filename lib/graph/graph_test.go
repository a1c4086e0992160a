// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import "testing"

// chain builds a.txt -> (rule) -> b.txt -> (rule) -> c.txt and returns
// the three nodes and two rules in declaration order.
func chain(t *testing.T) (a, b, c *Node, rab, rbc *Rule) {
	t.Helper()

	a = NewNode("a.txt")
	b = NewNode("b.txt")
	c = NewNode("c.txt")

	var err error
	rab, err = NewRule([]*Node{a}, []*Node{b})
	if err != nil {
		t.Fatalf("NewRule a->b: %v", err)
	}
	rab.SetCommand("cp a.txt b.txt")

	rbc, err = NewRule([]*Node{b}, []*Node{c})
	if err != nil {
		t.Fatalf("NewRule b->c: %v", err)
	}
	rbc.SetCommand("cp b.txt c.txt")

	return a, b, c, rab, rbc
}

func TestNewRuleRejectsEmptySets(t *testing.T) {
	t.Parallel()

	if _, err := NewRule(nil, []*Node{NewNode("out")}); err == nil {
		t.Error("expected error for empty inputs")
	}
	if _, err := NewRule([]*Node{NewNode("in")}, nil); err == nil {
		t.Error("expected error for empty outputs")
	}
}

func TestNewRuleRejectsOverlap(t *testing.T) {
	t.Parallel()

	n := NewNode("shared")
	if _, err := NewRule([]*Node{n}, []*Node{n}); err == nil {
		t.Error("expected error when a node is both input and output")
	}
}

func TestNodeRootSourceClassification(t *testing.T) {
	t.Parallel()

	a, b, c, _, _ := chain(t)

	if !a.IsSource() {
		t.Error("a.txt should be a source (no child rule)")
	}
	if a.IsRoot() {
		t.Error("a.txt should not be a root (consumed by rab)")
	}
	if b.IsSource() {
		t.Error("b.txt should not be a source (produced by rab)")
	}
	if c.IsRoot() != true {
		t.Error("c.txt should be a root (no parent rules)")
	}
}

// TestMarkDirtyPropagatesAndIsIdempotent exercises I5/L1: marking b.txt
// dirty must mark rbc (and transitively c.txt) dirty too, and a second
// call must not panic or double-propagate.
func TestMarkDirtyPropagatesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	_, b, c, _, rbc := chain(t)

	b.SetState(UpToDate)
	c.SetState(UpToDate)
	rbc.SetState(UpToDate)

	b.MarkDirty()

	if b.State() != OutOfDate {
		t.Error("b.txt should be OUT_OF_DATE after MarkDirty")
	}
	if rbc.State() != OutOfDate {
		t.Error("rbc should be OUT_OF_DATE once its input b.txt is dirty")
	}
	if c.State() != OutOfDate {
		t.Error("c.txt should be OUT_OF_DATE, propagated from rbc")
	}

	// Idempotent: calling again on an already OUT_OF_DATE node takes
	// the early-return path and leaves the state unchanged.
	b.MarkDirty()
	if b.State() != OutOfDate {
		t.Error("b.txt should remain OUT_OF_DATE")
	}
}

// TestMarkUpToDateRecomputesRuleState exercises I5: a rule with
// multiple outputs only becomes UP_TO_DATE once all of them are.
func TestMarkUpToDateRecomputesRuleState(t *testing.T) {
	t.Parallel()

	in := NewNode("in.txt")
	out1 := NewNode("out1.txt")
	out2 := NewNode("out2.txt")
	r, err := NewRule([]*Node{in}, []*Node{out1, out2})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	r.SetCommand("build both")
	r.SetState(OutOfDate)
	out1.SetState(OutOfDate)
	out2.SetState(OutOfDate)

	out1.MarkUpToDate()
	if r.State() != OutOfDate {
		t.Error("rule should still be OUT_OF_DATE: out2 is not yet up to date")
	}

	out2.MarkUpToDate()
	if r.State() != UpToDate {
		t.Error("rule should be UP_TO_DATE once every output is")
	}
}

func TestGraphAddNodeDedupes(t *testing.T) {
	t.Parallel()

	g := New()
	first := g.AddNode(NewNode("x.txt"))
	second := g.AddNode(NewNode("x.txt"))
	if first != second {
		t.Error("AddNode should return the existing node for a duplicate path")
	}
}

func TestGraphFinalizeRootsAndSources(t *testing.T) {
	t.Parallel()

	g := New()
	a, b, c, rab, rbc := chain(t)
	g.AddNode(a)
	g.AddNode(b)
	g.AddNode(c)
	g.AddRule(rab)
	g.AddRule(rbc)
	g.Finalize()

	if _, ok := g.Sources()[a]; !ok {
		t.Error("a.txt should be in Sources()")
	}
	if _, ok := g.Roots()[c]; !ok {
		t.Error("c.txt should be in Roots()")
	}
	if _, ok := g.Roots()[a]; ok {
		t.Error("a.txt should not be in Roots()")
	}
}

func TestCheckCyclesDetectsBackEdge(t *testing.T) {
	t.Parallel()

	g := New()
	x := g.AddNode(NewNode("x.txt"))
	y := g.AddNode(NewNode("y.txt"))

	rxy, err := NewRule([]*Node{x}, []*Node{y})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	rxy.SetCommand("x -> y")
	g.AddRule(rxy)

	ryx, err := NewRule([]*Node{y}, []*Node{x})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	ryx.SetCommand("y -> x")
	g.AddRule(ryx)

	err = CheckCycles(g)
	if err == nil {
		t.Fatal("expected a CycleError")
	}
	var cycleErr *CycleError
	if !asCycleError(err, &cycleErr) {
		t.Fatalf("error %v is not a *CycleError", err)
	}
}

func TestCheckCyclesAcceptsDAG(t *testing.T) {
	t.Parallel()

	g := New()
	a, b, c, rab, rbc := chain(t)
	g.AddNode(a)
	g.AddNode(b)
	g.AddNode(c)
	g.AddRule(rab)
	g.AddRule(rbc)

	if err := CheckCycles(g); err != nil {
		t.Fatalf("CheckCycles on a DAG: %v", err)
	}
}

func asCycleError(err error, target **CycleError) bool {
	ce, ok := err.(*CycleError)
	if ok {
		*target = ce
	}
	return ok
}
