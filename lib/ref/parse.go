// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// splitSigilID validates a Matrix identifier of the form
// <sigil>localpart:server and returns its two halves. Room IDs, user IDs
// and room aliases share this shape; event IDs do not.
func splitSigilID(identifier string, sigil byte, kind string) (localpart, server string, err error) {
	if identifier == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if identifier[0] != sigil {
		return "", "", fmt.Errorf("%s must start with '%c': %q", kind, sigil, identifier)
	}
	colon := strings.IndexByte(identifier, ':')
	if colon < 0 {
		return "", "", fmt.Errorf("%s missing ':server' suffix: %q", kind, identifier)
	}
	if colon == 1 {
		return "", "", fmt.Errorf("%s has empty local part: %q", kind, identifier)
	}
	server = identifier[colon+1:]
	if server == "" {
		return "", "", fmt.Errorf("%s has empty server name: %q", kind, identifier)
	}
	for i := 0; i < len(server); i++ {
		if c := server[i]; c <= ' ' || c == '@' || c == '#' || c == '!' {
			return "", "", fmt.Errorf("%s server name %q: invalid character at position %d", kind, server, i)
		}
	}
	return identifier[1:colon], server, nil
}

// TargetKind says which kind of identifier a join target holds.
type TargetKind int

const (
	// TargetInvalid is returned for input that is neither form.
	TargetInvalid TargetKind = iota
	TargetRoomID
	TargetAlias
)

// ParseJoinTarget classifies user input naming a room to join. The
// input is trimmed of surrounding whitespace; "!id:server" yields a
// RoomID and "#alias:server" yields a RoomAlias. Anything else is an
// error.
func ParseJoinTarget(raw string) (TargetKind, RoomID, RoomAlias, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TargetInvalid, RoomID{}, RoomAlias{}, fmt.Errorf("empty room ID or alias")
	}
	switch raw[0] {
	case '!':
		id, err := ParseRoomID(raw)
		if err != nil {
			return TargetInvalid, RoomID{}, RoomAlias{}, err
		}
		return TargetRoomID, id, RoomAlias{}, nil
	case '#':
		alias, err := ParseRoomAlias(raw)
		if err != nil {
			return TargetInvalid, RoomID{}, RoomAlias{}, err
		}
		return TargetAlias, RoomID{}, alias, nil
	default:
		return TargetInvalid, RoomID{}, RoomAlias{}, fmt.Errorf("%q is neither a room ID (!id:server) nor an alias (#alias:server)", raw)
	}
}
