// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is Dragon's terminal client: a bubbletea model that
// renders the engine's state and turns keystrokes and slash commands
// into engine commands.
//
// The model never touches chat state directly. Engine notifications
// arrive as [NotificationMsg] values (see [Listen]) and every command
// runs as a tea.Cmd against the [Client] interface, so the model's
// Update stays free of blocking calls. Layout:
//
//	┌ rooms ──┬ room header ────────────────────┐
//	│ # dev   │ timeline                        │
//	│ @ bob   │                                 │
//	│ ◖ lobby ├ call bar (while in a call) ─────┤
//	│         │ > composer                      │
//	└─────────┴ status line ────────────────────┘
//
// Before a session exists the model shows a login form instead.
package chatui
