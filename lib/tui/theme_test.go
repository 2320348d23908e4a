// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import "testing"

func TestSenderColorStable(t *testing.T) {
	first := DefaultTheme.SenderColor("@alice:example.org")
	for range 10 {
		if got := DefaultTheme.SenderColor("@alice:example.org"); got != first {
			t.Fatalf("SenderColor changed between calls: %v then %v", first, got)
		}
	}

	seen := make(map[string]bool)
	for _, user := range []string{"@a:x", "@b:x", "@c:x", "@d:x", "@e:x", "@f:x", "@g:x", "@h:x"} {
		seen[string(DefaultTheme.SenderColor(user))] = true
	}
	if len(seen) < 2 {
		t.Errorf("eight senders hashed to %d colors", len(seen))
	}
}

func TestSenderColorEmptyPalette(t *testing.T) {
	theme := DefaultTheme
	theme.SenderColors = nil
	if got := theme.SenderColor("@alice:example.org"); got != theme.NormalText {
		t.Errorf("got %v, want NormalText", got)
	}
}
