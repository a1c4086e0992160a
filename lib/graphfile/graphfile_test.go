// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graphfile

import "testing"

func TestParseBasicGraph(t *testing.T) {
	t.Parallel()

	src := []byte(`{
		// object file rule
		"rules": [
			{
				"inputs": ["a.c", "a.h"],
				"outputs": ["a.o"],
				"command": "cc -c a.c -o a.o",
				"depfile": "a.o.d",
			},
			{ "inputs": ["a.o"], "outputs": ["all"] },
		],
	}`)

	g, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ao, ok := g.Node("a.o")
	if !ok {
		t.Fatal("a.o node not found")
	}
	if ao.Child() == nil || ao.Child().Command() != "cc -c a.c -o a.o" {
		t.Error("a.o's producing rule has the wrong command")
	}
	if !ao.Child().HasDepfile() || ao.Child().Depfile() != "a.o.d" {
		t.Error("a.o's producing rule should carry the declared depfile")
	}

	all, ok := g.Node("all")
	if !ok {
		t.Fatal("all node not found")
	}
	if !all.Child().IsPhony() {
		t.Error("the 'all' rule has no command and should be phony")
	}

	ac, ok := g.Node("a.c")
	if !ok || !ac.IsSource() {
		t.Error("a.c should be registered as a source node")
	}
}

func TestParseDuplicateOutputFails(t *testing.T) {
	t.Parallel()

	src := []byte(`{
		"rules": [
			{ "inputs": ["a"], "outputs": ["x"], "command": "touch x" },
			{ "inputs": ["b"], "outputs": ["x"], "command": "touch x" }
		]
	}`)

	_, err := Parse(src)
	if err == nil {
		t.Fatal("expected ErrDuplicateOutput")
	}
	if _, ok := err.(*ErrDuplicateOutput); !ok {
		t.Errorf("error = %v (%T), want *ErrDuplicateOutput", err, err)
	}
}

func TestParseDepfile(t *testing.T) {
	t.Parallel()

	data := []byte("a.o: a.c a.h \\\n    b.h\nother.o: other.c\n")
	deps, err := ParseDepfile(data)
	if err != nil {
		t.Fatalf("ParseDepfile: %v", err)
	}

	want := []string{"a.c", "a.h", "b.h"}
	got := deps["a.o"]
	if len(got) != len(want) {
		t.Fatalf("a.o deps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("a.o deps[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolverMissingDepfileIsNotAnError(t *testing.T) {
	t.Parallel()

	r := Resolver{}
	deps, err := r.ImplicitInputs("a.o", "/nonexistent/path/a.o.d")
	if err != nil {
		t.Fatalf("ImplicitInputs: %v", err)
	}
	if deps != nil {
		t.Errorf("deps = %v, want nil", deps)
	}
}
