// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"

	"github.com/dragon-chat/dragon/lib/clienterr"
)

// commandSpec describes one slash command.
type commandSpec struct {
	Name    string
	Arg     string // Argument placeholder; empty for commands without one.
	Summary string
}

// commands is the slash command table, in help order.
var commands = []commandSpec{
	{Name: "join", Arg: "<#alias or !id>", Summary: "join a room"},
	{Name: "dm", Arg: "<user>", Summary: "open a direct message"},
	{Name: "create", Arg: "<name>", Summary: "create a private room"},
	{Name: "voice", Arg: "<name>", Summary: "create a voice channel"},
	{Name: "rooms", Summary: "switch room"},
	{Name: "call", Summary: "start a voice call in this room"},
	{Name: "video", Summary: "start a video call in this room"},
	{Name: "hangup", Summary: "leave the call"},
	{Name: "mic", Summary: "toggle the microphone"},
	{Name: "cam", Summary: "toggle the camera"},
	{Name: "screen", Summary: "toggle screen sharing"},
	{Name: "retry", Summary: "resend the newest failed message"},
	{Name: "logout", Summary: "end the session"},
	{Name: "help", Summary: "show keys and commands"},
	{Name: "quit", Summary: "exit"},
}

// input is a parsed composer line: either a slash command with its
// argument, or a message body.
type input struct {
	Command string
	Arg     string
	Body    string
}

// parseInput splits a composer line. A leading "//" sends a literal
// slash. Unknown commands and missing or unexpected arguments are
// Validation errors.
func parseInput(raw string) (input, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "//") {
		return input{Body: raw[strings.Index(raw, "/")+1:]}, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return input{Body: raw}, nil
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)
	for _, spec := range commands {
		if spec.Name != name {
			continue
		}
		if spec.Arg != "" && arg == "" {
			return input{}, clienterr.New(clienterr.Validation, "/"+name, "usage: /%s %s", name, spec.Arg)
		}
		if spec.Arg == "" && arg != "" {
			return input{}, clienterr.New(clienterr.Validation, "/"+name, "/%s takes no argument", name)
		}
		return input{Command: name, Arg: arg}, nil
	}
	return input{}, clienterr.New(clienterr.Validation, "command", "unknown command /%s (try /help)", name)
}
