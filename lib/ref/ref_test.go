// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseRoomID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "valid", input: "!abc:matrix.y7xyz.com"},
		{name: "port in server", input: "!opaque:localhost:8008"},
		{name: "empty", input: "", wantErr: "empty room ID"},
		{name: "alias sigil", input: "#room:server", wantErr: "must start with '!'"},
		{name: "no server", input: "!abc", wantErr: "missing ':server'"},
		{name: "empty local part", input: "!:server", wantErr: "empty local part"},
		{name: "empty server", input: "!abc:", wantErr: "empty server name"},
		{name: "space in server", input: "!abc:bad server", wantErr: "invalid character"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, err := ParseRoomID(test.input)
			if test.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseRoomID(%q) succeeded, want error containing %q", test.input, test.wantErr)
				}
				if !strings.Contains(err.Error(), test.wantErr) {
					t.Errorf("error = %q, want substring %q", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRoomID(%q): %v", test.input, err)
			}
			if id.String() != test.input {
				t.Errorf("String() = %q, want %q", id, test.input)
			}
		})
	}
}

func TestUserIDParts(t *testing.T) {
	user := MustParseUserID("@bob:matrix.y7xyz.com")
	if user.Localpart() != "bob" {
		t.Errorf("Localpart() = %q, want bob", user.Localpart())
	}
	if user.Server() != "matrix.y7xyz.com" {
		t.Errorf("Server() = %q, want matrix.y7xyz.com", user.Server())
	}

	var zero UserID
	if !zero.IsZero() || zero.Localpart() != "" {
		t.Errorf("zero UserID: IsZero=%v Localpart=%q", zero.IsZero(), zero.Localpart())
	}
}

func TestQualifyUserID(t *testing.T) {
	tests := []struct {
		name, input, server, want string
	}{
		{"bare localpart", "alice", "example.org", "@alice:example.org"},
		{"already qualified", "@alice:other.org", "example.org", "@alice:other.org"},
		{"surrounding space", "  carol ", "example.org", "@carol:example.org"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := QualifyUserID(test.input, test.server)
			if err != nil {
				t.Fatalf("QualifyUserID: %v", err)
			}
			if got.String() != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestParseJoinTarget(t *testing.T) {
	kind, id, _, err := ParseJoinTarget(" !abc:server ")
	if err != nil || kind != TargetRoomID || id.String() != "!abc:server" {
		t.Errorf("room ID target: kind=%v id=%q err=%v", kind, id, err)
	}

	kind, _, alias, err := ParseJoinTarget("#general:server")
	if err != nil || kind != TargetAlias || alias.String() != "#general:server" {
		t.Errorf("alias target: kind=%v alias=%q err=%v", kind, alias, err)
	}

	for _, bad := range []string{"", "   ", "general", "@bob:server", "#nosuffix"} {
		if kind, _, _, err := ParseJoinTarget(bad); err == nil || kind != TargetInvalid {
			t.Errorf("ParseJoinTarget(%q) = %v, %v; want invalid", bad, kind, err)
		}
	}
}

func TestParseEventID(t *testing.T) {
	if _, err := ParseEventID("$abc"); err != nil {
		t.Errorf("ParseEventID($abc): %v", err)
	}
	for _, bad := range []string{"", "$", "abc"} {
		if _, err := ParseEventID(bad); err == nil {
			t.Errorf("ParseEventID(%q) succeeded, want error", bad)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Room  RoomID    `json:"room"`
		User  UserID    `json:"user"`
		Alias RoomAlias `json:"alias,omitempty"`
	}
	original := payload{
		Room: MustParseRoomID("!r:s"),
		User: MustParseUserID("@u:s"),
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	if decoded != original {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}

	if err := json.Unmarshal([]byte(`{"room":"not-a-room"}`), &decoded); err == nil {
		t.Error("Unmarshal accepted an invalid room ID")
	}
}
