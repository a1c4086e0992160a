// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graphprint

import (
	"bytes"
	"strings"
	"testing"

	"github.com/adrienconrath/Falcon/lib/graph"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	a := g.AddNode(graph.NewNode("a.c"))
	o := g.AddNode(graph.NewNode("a.o"))
	r, err := graph.NewRule([]*graph.Node{a}, []*graph.Node{o})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	r.SetCommand("cc -c a.c -o a.o")
	g.AddRule(r)
	g.Finalize()
	return g
}

func TestWriteMakefile(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	var buf bytes.Buffer
	if err := WriteMakefile(g, &buf); err != nil {
		t.Fatalf("WriteMakefile: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "a.o : a.c") {
		t.Errorf("output missing stanza header, got:\n%s", out)
	}
	if !strings.Contains(out, "\tcc -c a.c -o a.o") {
		t.Errorf("output missing tab-indented command, got:\n%s", out)
	}
}

func TestWriteGraphvizColoursOutOfDateRed(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	var buf bytes.Buffer
	if err := WriteGraphviz(g, &buf); err != nil {
		t.Fatalf("WriteGraphviz: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "digraph Falcon {") {
		t.Errorf("output should start with the digraph header, got:\n%s", out)
	}
	if !strings.Contains(out, `"a.c" [color=red]`) {
		t.Errorf("OUT_OF_DATE source should render red, got:\n%s", out)
	}
}
