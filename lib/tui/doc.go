// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides shared terminal user interface components for
// Dragon's interactive client. Built on bubbletea (Elm architecture),
// these components cover the pieces that do not depend on chat state:
// the color theme, fuzzy matching, the floating picker, overlay
// splicing, scrollbars, and routing slog records into the program.
//
// The chat screen itself lives in lib/chatui, which imports this
// package for its look and its overlay mechanics.
package tui
