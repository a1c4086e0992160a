// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

// Package graphfile parses the JSONC graph file (comments and
// trailing commas permitted, the same convention the rest of the
// corpus uses for hand-authored configuration) into a *graph.Graph,
// and parses Make-style depfiles into the implicit-input lists that
// lib/graph.Scan folds into its dependency comparison.
package graphfile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/adrienconrath/Falcon/lib/graph"
)

// ErrDuplicateOutput is returned when two rules in the same graph
// file claim the same output path.
type ErrDuplicateOutput struct {
	Path string
}

func (e *ErrDuplicateOutput) Error() string {
	return fmt.Sprintf("graphfile: %q is produced by more than one rule", e.Path)
}

// document is the on-disk shape of a graph file.
type document struct {
	Rules []ruleDoc `json:"rules"`
}

type ruleDoc struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
	Command string   `json:"command,omitempty"`
	Depfile string   `json:"depfile,omitempty"`
}

// Load reads and parses the graph file at path.
func Load(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse strips JSONC comments and trailing commas from data, then
// builds a *graph.Graph from the resulting rule list. Every input and
// output path becomes a graph.Node, reused across rules that mention
// the same path more than once; the graph's root and source sets are
// derived once every rule has been registered.
func Parse(data []byte) (*graph.Graph, error) {
	stripped := jsonc.ToJSON(data)

	var doc document
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}

	g := graph.New()
	seenOutputs := make(map[string]bool)

	for _, rd := range doc.Rules {
		if len(rd.Inputs) == 0 {
			return nil, fmt.Errorf("graphfile: rule producing %v has no inputs", rd.Outputs)
		}
		if len(rd.Outputs) == 0 {
			return nil, fmt.Errorf("graphfile: rule has no outputs")
		}

		inputs := make([]*graph.Node, 0, len(rd.Inputs))
		for _, p := range rd.Inputs {
			inputs = append(inputs, g.AddNode(graph.NewNode(p)))
		}
		outputs := make([]*graph.Node, 0, len(rd.Outputs))
		for _, p := range rd.Outputs {
			if seenOutputs[p] {
				return nil, &ErrDuplicateOutput{Path: p}
			}
			seenOutputs[p] = true
			outputs = append(outputs, g.AddNode(graph.NewNode(p)))
		}

		rule, err := graph.NewRule(inputs, outputs)
		if err != nil {
			return nil, fmt.Errorf("graphfile: %w", err)
		}
		rule.SetCommand(rd.Command)
		if rd.Depfile != "" {
			rule.SetDepfile(rd.Depfile)
		}
		g.AddRule(rule)
	}

	g.Finalize()
	return g, nil
}

// ParseDepfile parses a Make-style depfile: a sequence of
// "target: prereq prereq …" lines (each line's prerequisites are
// whitespace-separated, a trailing "\" continues the prerequisite
// list onto the next line). Returns a map from every target in the
// file to its prerequisites; a target listed on several lines gets
// the prerequisites of all of them.
func ParseDepfile(data []byte) (map[string][]string, error) {
	result := make(map[string][]string)

	text := strings.ReplaceAll(string(data), "\\\n", " ")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, fmt.Errorf("graphfile: depfile line missing ':': %q", line)
		}
		target := strings.TrimSpace(line[:colon])
		fields := strings.Fields(line[colon+1:])
		result[target] = append(result[target], fields...)
	}
	return result, nil
}

// Resolver implements graph.DepfileResolver by reading and parsing a
// depfile from disk each time ImplicitInputs is called, so that
// changes to the depfile between scans are always picked up.
type Resolver struct{}

// ImplicitInputs implements graph.DepfileResolver.
func (Resolver) ImplicitInputs(target string, depfile string) ([]string, error) {
	data, err := os.ReadFile(depfile)
	if err != nil {
		if os.IsNotExist(err) {
			// No depfile yet (target has never been built): no
			// implicit inputs to report, not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("graphfile: reading depfile %s: %w", depfile, err)
	}
	deps, err := ParseDepfile(data)
	if err != nil {
		return nil, err
	}
	return deps[target], nil
}
