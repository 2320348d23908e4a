// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"log/slog"
	"testing"
)

func TestLogHandlerLevel(t *testing.T) {
	handler := NewLogHandler(slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be below a warn handler")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass a warn handler")
	}
}

func TestLogHandlerWithoutProgram(t *testing.T) {
	logger := slog.New(NewLogHandler(slog.LevelDebug)).With("room_id", "!r:local")
	// Dropped silently until SetProgram is called.
	logger.Error("send failed", "error", "boom")
}

func TestLogHandlerDerivedAttrs(t *testing.T) {
	root := NewLogHandler(slog.LevelInfo)
	derived := root.WithGroup("call").WithAttrs([]slog.Attr{slog.Int("epoch", 3)}).(*LogHandler)
	if derived.program != root.program {
		t.Error("derived handler must share the program pointer")
	}
	if len(derived.attrs) != 1 || derived.attrs[0] != "call.epoch=3" {
		t.Errorf("attrs = %v, want [call.epoch=3]", derived.attrs)
	}
	if len(root.attrs) != 0 {
		t.Errorf("root attrs mutated: %v", root.attrs)
	}
}
