// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashcache persists the "last known good" state that the
// dependency scan (lib/graph.Scan) compares against: the command
// string and content hashes recorded the last time each rule ran.
// This is the schema-private "persisted state" collaborator referred
// to by the specification's external-interfaces section — its file
// format is not part of the wire or transcript contracts.
//
// Content hashing supplements the reference implementation's
// timestamp-only staleness check: an input whose mtime changed but
// whose content did not (a touch, a checkout that resets mtimes) is
// not considered stale.
package hashcache

import (
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/adrienconrath/Falcon/lib/codec"
)

// Hash is a 32-byte BLAKE3 content digest.
type Hash [32]byte

// Entry records the last-known-good state of a single rule: the
// command string that produced its outputs, the wall-clock time the
// rule last finished successfully, and the content hash of each
// input recorded at that time.
type Entry struct {
	Command        string          `cbor:"command"`
	BuildTimestamp int64           `cbor:"build_timestamp"`
	InputHashes    map[string]Hash `cbor:"input_hashes"`
}

// document is the on-disk CBOR shape: one Entry per rule, keyed by
// the rule's primary output path (a rule's outputs are unique across
// the graph, so this key is stable and unambiguous).
type document struct {
	Entries map[string]Entry `cbor:"entries"`
}

// Store is an in-memory, mutable view of the hash cache, loaded from
// and savable back to a single file. Not safe for concurrent use;
// callers serialize access the same way they serialize graph access.
type Store struct {
	path    string
	entries map[string]Entry
}

// Load reads the hash cache from path. A missing file is not an
// error: it yields an empty store, which causes every rule to be
// considered dirty on the following scan (equivalent to the
// reference implementation's fresh-checkout behaviour).
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{path: path, entries: make(map[string]Entry)}, nil
		}
		return nil, err
	}

	var doc document
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]Entry)
	}
	return &Store{path: path, entries: doc.Entries}, nil
}

// Save writes the current entries back to disk, creating the parent
// directory if needed.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := codec.Marshal(document{Entries: s.entries})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Get returns the recorded entry for the rule keyed by key (its
// primary output path), if any.
func (s *Store) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Set records the entry for the rule keyed by key.
func (s *Store) Set(key string, e Entry) {
	if s.entries == nil {
		s.entries = make(map[string]Entry)
	}
	s.entries[key] = e
}

// HashFile computes the BLAKE3 content hash of the file at path.
func HashFile(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, err
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h, nil
}
