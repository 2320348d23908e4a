// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// UserID is a validated Matrix user ID (e.g., "@alice:matrix.example.com").
//
// Only the structure is checked (sigil, localpart, server). Any account
// on any federated server is accepted.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := splitSigilID(raw, '@', "user ID"); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is like ParseUserID but panics on error.
func MustParseUserID(raw string) UserID {
	u, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return u
}

// QualifyUserID turns a login name into a full user ID. A name that is
// already "@local:server" is parsed as-is; a bare localpart is
// qualified with server.
func QualifyUserID(name, server string) (UserID, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "@") {
		return ParseUserID(name)
	}
	return ParseUserID("@" + name + ":" + server)
}

func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is unset.
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the part between '@' and the first ':'. Returns ""
// for the zero value.
func (u UserID) Localpart() string {
	localpart, _, err := splitSigilID(u.id, '@', "user ID")
	if err != nil {
		return ""
	}
	return localpart
}

// Server returns the homeserver name. Returns "" for the zero value.
func (u UserID) Server() string {
	_, server, err := splitSigilID(u.id, '@', "user ID")
	if err != nil {
		return ""
	}
	return server
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
