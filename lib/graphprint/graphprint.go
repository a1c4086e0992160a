// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package graphprint renders a *graph.Graph as either a Makefile or a
// Graphviz dot document. These are plain functions over an io.Writer
// rather than a visitor type: the reference implementation's visitor
// pattern has nothing left to visit once there are only two renderers
// and neither needs to share state with the other.
package graphprint

import (
	"fmt"
	"io"
	"sort"

	"github.com/adrienconrath/Falcon/lib/graph"
)

// WriteMakefile writes one "outputs... : inputs..." / "\tcommand"
// stanza per rule in g, in declaration order. Phony rules are emitted
// without a command line.
func WriteMakefile(g *graph.Graph, w io.Writer) error {
	for _, r := range g.Rules() {
		if _, err := fmt.Fprint(w, joinPaths(r.Outputs())); err != nil {
			return err
		}
		if _, err := fmt.Fprint(w, " :"); err != nil {
			return err
		}
		for _, in := range r.Inputs() {
			if _, err := fmt.Fprintf(w, " %s", in.Path); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if !r.IsPhony() {
			if _, err := fmt.Fprintf(w, "\t%s\n", r.Command()); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPaths(nodes []*graph.Node) string {
	s := ""
	for i, n := range nodes {
		if i > 0 {
			s += " "
		}
		s += n.Path
	}
	return s
}

// WriteGraphviz writes g as a "digraph Falcon { ... }" document. Node
// and rule colouring follows the reference implementation's
// convention: OUT_OF_DATE renders in red, UP_TO_DATE in black.
func WriteGraphviz(g *graph.Graph, w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph Falcon {"); err != nil {
		return err
	}

	paths := make([]string, 0, len(g.Nodes()))
	for p := range g.Nodes() {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		n, _ := g.Node(p)
		if _, err := fmt.Fprintf(w, "  %q [color=%s];\n", n.Path, color(n.State())); err != nil {
			return err
		}
	}

	for i, r := range g.Rules() {
		ruleNode := fmt.Sprintf("rule%d", i)
		if _, err := fmt.Fprintf(w, "  %q [shape=box,label=%q,color=%s];\n", ruleNode, label(r), color(r.State())); err != nil {
			return err
		}
		for _, in := range r.Inputs() {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", in.Path, ruleNode); err != nil {
				return err
			}
		}
		for _, out := range r.Outputs() {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", ruleNode, out.Path); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func color(s graph.State) string {
	if s == graph.OutOfDate {
		return "red"
	}
	return "black"
}

func label(r *graph.Rule) string {
	if r.IsPhony() {
		return "(phony)"
	}
	return r.Command()
}
