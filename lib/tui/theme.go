// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/zeebo/blake3"
)

// Theme defines the color palette for Dragon's terminal UI. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	AccentColor      lipgloss.Color

	// Delivery states of locally sent messages.
	PendingText lipgloss.Color
	FailedText  lipgloss.Color

	// Room list badges.
	UnreadBadge lipgloss.Color
	VoiceRoom   lipgloss.Color

	// Call bar.
	CallConnecting lipgloss.Color
	CallConnected  lipgloss.Color

	// Status line severities.
	WarningText lipgloss.Color
	ErrorText   lipgloss.Color

	// Fuzzy match highlighting in the room picker.
	MatchForeground lipgloss.Color

	LinkForeground lipgloss.Color

	// Floating boxes (picker, help).
	TooltipForeground lipgloss.Color
	TooltipBackground lipgloss.Color

	// SenderColors is the palette message senders are hashed into.
	SenderColors []lipgloss.Color
}

// SenderColor returns a stable color for a sender key (a Matrix user
// ID). The same key maps to the same color across runs and machines.
func (theme Theme) SenderColor(key string) lipgloss.Color {
	if len(theme.SenderColors) == 0 {
		return theme.NormalText
	}
	digest := blake3.Sum256([]byte(key))
	index := (uint32(digest[0])<<8 | uint32(digest[1])) % uint32(len(theme.SenderColors))
	return theme.SenderColors[index]
}

// DefaultTheme is a dark-background palette.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("242"),

	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("75"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("243"),
	AccentColor:      lipgloss.Color("75"),

	PendingText: lipgloss.Color("244"),
	FailedText:  lipgloss.Color("196"),

	UnreadBadge: lipgloss.Color("214"),
	VoiceRoom:   lipgloss.Color("114"),

	CallConnecting: lipgloss.Color("220"),
	CallConnected:  lipgloss.Color("42"),

	WarningText: lipgloss.Color("214"),
	ErrorText:   lipgloss.Color("203"),

	MatchForeground: lipgloss.Color("213"),

	LinkForeground: lipgloss.Color("117"),

	TooltipForeground: lipgloss.Color("252"),
	TooltipBackground: lipgloss.Color("236"),

	SenderColors: []lipgloss.Color{
		lipgloss.Color("39"),
		lipgloss.Color("78"),
		lipgloss.Color("141"),
		lipgloss.Color("173"),
		lipgloss.Color("179"),
		lipgloss.Color("204"),
		lipgloss.Color("80"),
		lipgloss.Color("111"),
	},
}
