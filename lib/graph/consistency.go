// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// CycleError reports that the graph contains a directed cycle,
// naming one node on the offending cycle.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: cycle detected at node %q", e.Node)
}

// color is the tri-colour DFS marking used by CheckCycles.
type color int

const (
	unseen color = iota
	onStack
	done
)

// CheckCycles performs a depth-first search from every node in the
// graph, using tri-colour marking (unseen / on-stack / done), and
// returns a *CycleError naming one node on the first back edge found.
// Returns nil if the graph is a DAG.
func CheckCycles(g *Graph) error {
	marks := make(map[*Node]color, len(g.nodes))

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch marks[n] {
		case done:
			return nil
		case onStack:
			return &CycleError{Node: n.Path}
		}
		marks[n] = onStack
		if n.Child() != nil {
			for _, in := range n.Child().Inputs() {
				if err := visit(in); err != nil {
					return err
				}
			}
		}
		marks[n] = done
		return nil
	}

	// Visit every node, not just roots, so a cycle disconnected from
	// any root is still detected.
	for _, n := range g.nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}
