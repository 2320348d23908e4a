// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// LogRecordMsg carries one slog record into the bubbletea program for
// the status line.
type LogRecordMsg struct {
	Summary string
	Level   slog.Level
	Time    time.Time
}

// LogFadeMsg clears a status line message. Seq matches the
// LogRecordMsg count at the time the fade was scheduled, so an older
// fade does not clear a newer message.
type LogFadeMsg struct{ Seq int }

// LogFadeDelay is how long a log line stays in the status bar.
const LogFadeDelay = 5 * time.Second

// FadeLog schedules a LogFadeMsg for seq.
func FadeLog(seq int) tea.Cmd {
	return tea.Tick(LogFadeDelay, func(time.Time) tea.Msg { return LogFadeMsg{Seq: seq} })
}

// LogHandler is a slog.Handler that sends records at or above its level
// to a bubbletea program. Records arriving before SetProgram are
// dropped. Handlers derived via WithAttrs and WithGroup share the
// program pointer, so one SetProgram reaches all of them.
type LogHandler struct {
	level   slog.Leveler
	program *atomic.Pointer[tea.Program]
	prefix  string
	attrs   []string
}

// NewLogHandler creates a handler delivering records at or above level.
func NewLogHandler(level slog.Leveler) *LogHandler {
	return &LogHandler{level: level, program: &atomic.Pointer[tea.Program]{}}
}

// SetProgram sets the program that receives records. Safe to call from
// any goroutine; nil stops delivery.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level.Level()
}

// Handle formats the record as "message (key=value, ...)" and sends it.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}

	parts := append([]string(nil), handler.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, handler.prefix+attr.Key+"="+attr.Value.String())
		return true
	})
	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	program.Send(LogRecordMsg{Summary: summary, Level: record.Level, Time: record.Time})
	return nil
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append([]string(nil), handler.attrs...)
	for _, attr := range attrs {
		derived.attrs = append(derived.attrs, handler.prefix+attr.Key+"="+attr.Value.String())
	}
	return &derived
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := *handler
	derived.prefix = handler.prefix + name + "."
	return &derived
}
