// Copyright 2026 The Falcon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"sort"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// fuzzyFilter ranks entries whose text fuzzy-matches pattern, highest
// score first, dropping non-matches. An empty pattern returns every
// index in its original order.
func fuzzyFilter(texts []string, pattern string) []int {
	if pattern == "" {
		indices := make([]int, len(texts))
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	runes := []rune(pattern)
	type scored struct {
		index int
		score int
	}
	var matches []scored
	for i, text := range texts {
		chars := util.RunesToChars([]rune(text))
		result, _ := algo.FuzzyMatchV2(false, true, true, &chars, runes, false, nil)
		if result.Score > 0 {
			matches = append(matches, scored{index: i, score: result.Score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	indices := make([]int, len(matches))
	for i, m := range matches {
		indices[i] = m.index
	}
	return indices
}
