// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Scrollbar describes a one-column scrollbar beside a scrolled pane.
// Units are lines for the timeline and rows for the room list.
type Scrollbar struct {
	Height  int
	Total   int
	Visible int
	Offset  int
	Focused bool
}

// thumb returns the first row and the length of the thumb.
func (bar Scrollbar) thumb() (start, size int) {
	if bar.Total <= bar.Visible || bar.Total <= 0 {
		return 0, bar.Height
	}
	size = max(bar.Height*bar.Visible/bar.Total, 1)
	scrollable := bar.Total - bar.Visible
	track := bar.Height - size
	if track > 0 {
		start = min(bar.Offset, scrollable) * track / scrollable
	}
	return min(start, bar.Height-size), size
}

// Render draws the track and thumb. The thumb uses the accent color
// when the pane has focus.
func (bar Scrollbar) Render(theme Theme) string {
	if bar.Height <= 0 {
		return ""
	}
	thumbColor := theme.BorderColor
	if bar.Focused {
		thumbColor = theme.AccentColor
	}
	trackStyle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	thumbStyle := lipgloss.NewStyle().Foreground(thumbColor)

	start, size := bar.thumb()
	lines := make([]string, bar.Height)
	for row := range lines {
		if row >= start && row < start+size {
			lines[row] = thumbStyle.Render("┃")
		} else {
			lines[row] = trackStyle.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}
