// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func testPicker() *Picker {
	return NewPicker("Switch room", []Candidate{
		{Label: "general", Value: "!g:local"},
		{Label: "random", Value: "!r:local"},
		{Label: "Bob", Value: "!dm:local"},
	})
}

func TestPickerCursorWraps(t *testing.T) {
	picker := testPicker()
	picker.MoveUp()
	if selected, _ := picker.Selected(); selected.Value != "!dm:local" {
		t.Errorf("MoveUp from top selected %q, want the last candidate", selected.Value)
	}
	picker.MoveDown()
	if selected, _ := picker.Selected(); selected.Value != "!g:local" {
		t.Errorf("MoveDown from bottom selected %q, want the first candidate", selected.Value)
	}
}

func TestPickerTypingFilters(t *testing.T) {
	picker := testPicker()
	picker.MoveDown()
	picker.Type([]rune("ran"))
	if picker.Query() != "ran" {
		t.Fatalf("Query() = %q", picker.Query())
	}
	selected, ok := picker.Selected()
	if !ok || selected.Value != "!r:local" {
		t.Fatalf("Selected() = %+v, %v; want random with the cursor reset", selected, ok)
	}

	picker.Type([]rune("zzz"))
	if _, ok := picker.Selected(); ok {
		t.Error("Selected() should report nothing when no candidate matches")
	}
	picker.MoveDown()

	for range 3 {
		picker.Backspace()
	}
	if len(picker.Matches()) == 0 {
		t.Error("Backspace should restore matches")
	}
}

func TestPickerRenderUniformWidth(t *testing.T) {
	picker := testPicker()
	picker.Type([]rune("o"))
	lines := picker.Render(DefaultTheme, 30, 5)
	if len(lines) < 3 {
		t.Fatalf("expected title, query and matches, got %d lines", len(lines))
	}
	width := ansi.StringWidth(lines[0])
	for index, line := range lines {
		if got := ansi.StringWidth(line); got != width {
			t.Errorf("line %d width %d, want %d", index, got, width)
		}
	}
	if !strings.Contains(ansi.Strip(lines[1]), "> o") {
		t.Errorf("query line = %q", ansi.Strip(lines[1]))
	}
}
