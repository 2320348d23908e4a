// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/junegunn/fzf/src/util"
)

// Picker is a floating fuzzy-filtered menu. The owning model routes
// keystrokes to it while it is open: printable runes extend the query,
// up/down move the cursor, enter takes Selected, escape closes it.
type Picker struct {
	Title string

	candidates []Candidate
	query      []rune
	ranked     []RankedCandidate
	cursor     int
	slab       *util.Slab
}

// NewPicker opens a picker over candidates with an empty query.
func NewPicker(title string, candidates []Candidate) *Picker {
	picker := &Picker{Title: title, candidates: candidates, slab: NewSlab()}
	picker.refilter()
	return picker
}

// Query returns the current filter text.
func (picker *Picker) Query() string { return string(picker.query) }

// Type appends runes to the query.
func (picker *Picker) Type(runes []rune) {
	picker.query = append(picker.query, runes...)
	picker.refilter()
}

// Backspace removes the last rune of the query.
func (picker *Picker) Backspace() {
	if len(picker.query) == 0 {
		return
	}
	picker.query = picker.query[:len(picker.query)-1]
	picker.refilter()
}

func (picker *Picker) refilter() {
	picker.ranked = RankCandidates(picker.candidates, string(picker.query), picker.slab)
	picker.cursor = 0
}

// Matches returns the candidates passing the current query.
func (picker *Picker) Matches() []RankedCandidate { return picker.ranked }

// MoveUp moves the cursor up by one, wrapping to the bottom.
func (picker *Picker) MoveUp() {
	if len(picker.ranked) == 0 {
		return
	}
	picker.cursor--
	if picker.cursor < 0 {
		picker.cursor = len(picker.ranked) - 1
	}
}

// MoveDown moves the cursor down by one, wrapping to the top.
func (picker *Picker) MoveDown() {
	if len(picker.ranked) == 0 {
		return
	}
	picker.cursor++
	if picker.cursor >= len(picker.ranked) {
		picker.cursor = 0
	}
}

// Selected returns the highlighted candidate, if any matched.
func (picker *Picker) Selected() (Candidate, bool) {
	if len(picker.ranked) == 0 {
		return Candidate{}, false
	}
	return picker.ranked[picker.cursor].Candidate, true
}

// Render produces the picker box, at most maxRows candidates tall,
// ready for CenterOverlay. Every line has the same visible width.
func (picker *Picker) Render(theme Theme, width, maxRows int) []string {
	innerWidth := max(width-2, 8)
	base := lipgloss.NewStyle().
		Background(theme.TooltipBackground).
		Foreground(theme.TooltipForeground)
	selected := lipgloss.NewStyle().
		Background(theme.SelectedBackground).
		Foreground(theme.SelectedForeground)
	match := lipgloss.NewStyle().Foreground(theme.MatchForeground).Bold(true)

	pad := func(style lipgloss.Style, content string) string {
		content = ansi.Truncate(content, innerWidth, "…")
		fill := innerWidth - ansi.StringWidth(content)
		return style.Render(" " + content + strings.Repeat(" ", max(fill, 0)) + " ")
	}

	lines := []string{
		pad(base.Bold(true), picker.Title),
		pad(base, "> "+string(picker.query)),
	}

	start := 0
	if picker.cursor >= maxRows {
		start = picker.cursor - maxRows + 1
	}
	for index := start; index < len(picker.ranked) && index < start+maxRows; index++ {
		candidate := picker.ranked[index]
		style := base
		marker := "  "
		if index == picker.cursor {
			style = selected
			marker = "▸ "
		}
		label := highlight(candidate.Label, candidate.Positions, style, match.Background(style.GetBackground()))
		lines = append(lines, pad(style, marker+label))
	}
	if len(picker.ranked) == 0 {
		lines = append(lines, pad(base.Foreground(theme.FaintText), "no matches"))
	}
	return lines
}

// highlight styles the runes at positions with match and the rest with
// style.
func highlight(label string, positions []int, style, match lipgloss.Style) string {
	if len(positions) == 0 {
		return label
	}
	marked := make(map[int]bool, len(positions))
	for _, position := range positions {
		marked[position] = true
	}
	var builder strings.Builder
	for index, r := range []rune(label) {
		if marked[index] {
			builder.WriteString(match.Render(string(r)))
		} else {
			builder.WriteString(style.Render(string(r)))
		}
	}
	return builder.String()
}
