// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrienconrath/Falcon/lib/hashcache"
)

type noDepfiles struct{}

func (noDepfiles) ImplicitInputs(target, depfile string) ([]string, error) { return nil, nil }

func TestScanFreshCheckoutEverythingDirty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	mustWrite(t, inPath, "input")
	mustWrite(t, outPath, "output")

	g := New()
	in := g.AddNode(NewNode(inPath))
	out := g.AddNode(NewNode(outPath))
	r, err := NewRule([]*Node{in}, []*Node{out})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	r.SetCommand("cp in out")
	g.AddRule(r)
	g.Finalize()

	cache, err := hashcache.Load(filepath.Join(dir, "does-not-exist.cbor"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := Scan(g, cache, noDepfiles{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if r.State() != OutOfDate {
		t.Error("rule with no cache entry should be OUT_OF_DATE")
	}
}

func TestScanUpToDateWhenRecorded(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	mustWrite(t, inPath, "input")
	time.Sleep(10 * time.Millisecond)
	mustWrite(t, outPath, "output")

	g := New()
	in := g.AddNode(NewNode(inPath))
	out := g.AddNode(NewNode(outPath))
	r, err := NewRule([]*Node{in}, []*Node{out})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	r.SetCommand("cp in out")
	g.AddRule(r)
	g.Finalize()

	cache, err := hashcache.Load(filepath.Join(dir, "cache.cbor"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inHash, err := hashcache.HashFile(inPath)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	cache.Set(outPath, hashcache.Entry{
		Command:        "cp in out",
		BuildTimestamp: time.Now().Add(time.Hour).Unix(),
		InputHashes:    map[string]hashcache.Hash{inPath: inHash},
	})

	if err := Scan(g, cache, noDepfiles{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if r.State() != UpToDate {
		t.Error("rule with matching recorded entry should be UP_TO_DATE")
	}
}

func TestScanDirtyOnCommandChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	mustWrite(t, inPath, "input")
	mustWrite(t, outPath, "output")

	g := New()
	in := g.AddNode(NewNode(inPath))
	out := g.AddNode(NewNode(outPath))
	r, err := NewRule([]*Node{in}, []*Node{out})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	r.SetCommand("cp in out --flag")
	g.AddRule(r)
	g.Finalize()

	cache, err := hashcache.Load(filepath.Join(dir, "cache.cbor"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cache.Set(outPath, hashcache.Entry{
		Command:        "cp in out",
		BuildTimestamp: time.Now().Add(time.Hour).Unix(),
		InputHashes:    map[string]hashcache.Hash{},
	})

	if err := Scan(g, cache, noDepfiles{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if r.State() != OutOfDate {
		t.Error("rule should be OUT_OF_DATE when its command string changed")
	}
}

func TestScanMissingOutputIsDirty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	mustWrite(t, inPath, "input")

	g := New()
	in := g.AddNode(NewNode(inPath))
	out := g.AddNode(NewNode(outPath))
	r, err := NewRule([]*Node{in}, []*Node{out})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	r.SetCommand("cp in out")
	g.AddRule(r)
	g.Finalize()

	cache, err := hashcache.Load(filepath.Join(dir, "cache.cbor"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := Scan(g, cache, noDepfiles{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if r.State() != OutOfDate {
		t.Error("rule with a missing output should be OUT_OF_DATE")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
