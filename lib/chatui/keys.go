// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the chat screen. The composer has
// focus at all times, so bindings avoid plain printable keys.
type KeyMap struct {
	Send key.Binding

	// Room navigation.
	PreviousRoom key.Binding
	NextRoom     key.Binding
	PickRoom     key.Binding // Open the fuzzy room switcher.

	// Timeline scrolling.
	PageUp   key.Binding
	PageDown key.Binding

	Retry key.Binding // Resend the newest failed message in the room.

	// Calls.
	ToggleMic key.Binding
	HangUp    key.Binding

	// Login form.
	NextField     key.Binding
	PreviousField key.Binding

	// Picker navigation.
	PickerUp   key.Binding
	PickerDown key.Binding

	Help   key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	PreviousRoom: key.NewBinding(
		key.WithKeys("alt+up", "ctrl+p"),
		key.WithHelp("C-p", "previous room"),
	),
	NextRoom: key.NewBinding(
		key.WithKeys("alt+down", "ctrl+n"),
		key.WithHelp("C-n", "next room"),
	),
	PickRoom: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("C-k", "switch room"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Retry: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "retry failed"),
	),
	ToggleMic: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "mute"),
	),
	HangUp: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("C-x", "hang up"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	PreviousField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("S-tab", "previous field"),
	),
	PickerUp: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
	),
	PickerDown: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("F1", "help"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}

// ShortHelp is the binding list shown in the status line.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.PickRoom, keys.NextRoom, keys.Retry, keys.Help, keys.Quit}
}
