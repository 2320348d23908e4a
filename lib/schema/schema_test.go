// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "testing"

func TestParseMembership(t *testing.T) {
	tests := []struct {
		input string
		want  Membership
		ok    bool
	}{
		{"invite", Invited, true},
		{"join", Joined, true},
		{"leave", Left, true},
		{"ban", Banned, true},
		{"knock", 0, false},
		{"", 0, false},
	}
	for _, test := range tests {
		got, ok := ParseMembership(test.input)
		if ok != test.ok || (ok && got != test.want) {
			t.Errorf("ParseMembership(%q) = %v, %v; want %v, %v", test.input, got, ok, test.want, test.ok)
		}
	}
}

func TestCallKindInitialTracks(t *testing.T) {
	if tracks := CallVoice.InitialTracks(); len(tracks) != 1 || tracks[0] != TrackAudio {
		t.Errorf("voice tracks = %v, want [audio]", tracks)
	}
	if tracks := CallVideo.InitialTracks(); len(tracks) != 2 || tracks[0] != TrackAudio || tracks[1] != TrackVideo {
		t.Errorf("video tracks = %v, want [audio video]", tracks)
	}
}

func TestParseTrackKind(t *testing.T) {
	if kind, err := ParseTrackKind("screen"); err != nil || kind != TrackScreen {
		t.Errorf("ParseTrackKind(screen) = %v, %v", kind, err)
	}
	if _, err := ParseTrackKind("hologram"); err == nil {
		t.Error("ParseTrackKind accepted an unknown kind")
	}
}

func TestMemberLabel(t *testing.T) {
	member := Member{DisplayName: "Bob"}
	if member.Label() != "Bob" {
		t.Errorf("Label() = %q, want Bob", member.Label())
	}
}
