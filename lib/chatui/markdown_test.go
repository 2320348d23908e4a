// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/dragon-chat/dragon/lib/tui"
)

func stripped(body string, width int) string {
	return ansi.Strip(renderBody(body, tui.DefaultTheme, width, tui.DefaultTheme.NormalText))
}

func TestRenderBodyEmpty(t *testing.T) {
	if got := renderBody("  \n", tui.DefaultTheme, 40, tui.DefaultTheme.NormalText); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRenderBodyInline(t *testing.T) {
	got := stripped("this is **bold**, _italic_, ~~gone~~ and `code`", 80)
	if got != "this is bold, italic, gone and code" {
		t.Errorf("got %q", got)
	}
}

func TestRenderBodyStyled(t *testing.T) {
	raw := renderBody("**bold**", tui.DefaultTheme, 80, tui.DefaultTheme.NormalText)
	if !strings.Contains(raw, "\x1b[") {
		t.Errorf("expected ANSI styling, got %q", raw)
	}
}

func TestRenderBodySoftBreakReflows(t *testing.T) {
	got := stripped("one\ntwo", 80)
	if got != "one two" {
		t.Errorf("got %q", got)
	}
}

func TestRenderBodyWraps(t *testing.T) {
	got := stripped("the quick brown fox jumps over the lazy dog again and again", 20)
	for _, line := range strings.Split(got, "\n") {
		if ansi.StringWidth(line) > 20 {
			t.Errorf("line wider than 20: %q", line)
		}
	}
	if !strings.Contains(got, "\n") {
		t.Error("expected wrapping")
	}
}

func TestRenderBodyBlocks(t *testing.T) {
	got := stripped("> quoted\n\n- one\n- two\n\n1. first\n2. second", 40)
	for _, want := range []string{"│ quoted", "• one", "• two", "1. first", "2. second"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderBodyLinks(t *testing.T) {
	got := stripped("see [the docs](https://example.org/docs) or https://example.org", 80)
	if !strings.Contains(got, "the docs (https://example.org/docs)") {
		t.Errorf("link destination missing: %q", got)
	}
	if !strings.Contains(got, "or https://example.org") {
		t.Errorf("autolink missing: %q", got)
	}
}

func TestRenderBodyCodeBlock(t *testing.T) {
	got := stripped("```go\nfunc main() {}\n```", 40)
	if !strings.Contains(got, "func main() {}") {
		t.Errorf("code missing: %q", got)
	}
	if !strings.HasPrefix(got, "  ") {
		t.Errorf("code block should be indented: %q", got)
	}
}
