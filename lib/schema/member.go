// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "github.com/dragon-chat/dragon/lib/ref"

// Membership is a member's state in a room.
type Membership int

const (
	Invited Membership = iota
	Joined
	Left
	Banned
)

func (m Membership) String() string {
	switch m {
	case Invited:
		return "invited"
	case Joined:
		return "joined"
	case Left:
		return "left"
	case Banned:
		return "banned"
	default:
		return "unknown"
	}
}

// ParseMembership maps the Matrix "membership" content value. Knocks
// are reported as not ok; the client does not model them.
func ParseMembership(value string) (Membership, bool) {
	switch value {
	case "invite":
		return Invited, true
	case "join":
		return Joined, true
	case "leave":
		return Left, true
	case "ban":
		return Banned, true
	default:
		return 0, false
	}
}

// Member is a user's membership in one room. Members are never removed;
// a departed user stays addressable with Left or Banned.
type Member struct {
	UserID      ref.UserID
	DisplayName string
	Membership  Membership
}

// Label returns the display name, falling back to the user ID.
func (m Member) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.UserID.String()
}
