// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"slices"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching one candidate against a
// pattern. Score is zero when the pattern does not match. Positions
// holds the rune offsets of matched characters in ascending order.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// Matched reports whether the candidate matched.
func (result FuzzyResult) Matched() bool { return result.Score > 0 }

var initScoring = sync.OnceFunc(func() { algo.Init("default") })

// NewSlab returns scratch space for FuzzyMatch. A slab may be reused
// across calls on the same goroutine.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyMatch scores text against pattern using fzf's V2 algorithm,
// ignoring case. An empty pattern scores zero.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}
	initScoring()

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}

	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		matched.Positions = slices.Clone(*positions)
		slices.Sort(matched.Positions)
	}
	return matched
}

// Candidate is one item offered to RankCandidates.
type Candidate struct {
	Label string
	Value string
}

// RankedCandidate is a Candidate that matched, with its match.
type RankedCandidate struct {
	Candidate
	FuzzyResult
}

// RankCandidates returns the candidates that match pattern, best score
// first. Ties keep their input order. An empty pattern returns every
// candidate unscored, in input order.
func RankCandidates(candidates []Candidate, pattern string, slab *util.Slab) []RankedCandidate {
	runes := []rune(strings.TrimSpace(pattern))
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if len(runes) == 0 {
			ranked = append(ranked, RankedCandidate{Candidate: candidate})
			continue
		}
		if result := FuzzyMatch(candidate.Label, runes, slab); result.Matched() {
			ranked = append(ranked, RankedCandidate{Candidate: candidate, FuzzyResult: result})
		}
	}
	slices.SortStableFunc(ranked, func(a, b RankedCandidate) int { return b.Score - a.Score })
	return ranked
}
