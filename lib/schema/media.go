// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// RoomKind is a room's derived classification.
type RoomKind int

const (
	RoomGroup RoomKind = iota
	RoomDirect
	RoomVoice
)

func (k RoomKind) String() string {
	switch k {
	case RoomGroup:
		return "group"
	case RoomDirect:
		return "direct"
	case RoomVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// TrackKind is a kind of media a participant publishes.
type TrackKind string

const (
	TrackAudio  TrackKind = "audio"
	TrackVideo  TrackKind = "video"
	TrackScreen TrackKind = "screen"
)

// ParseTrackKind validates a track kind string received on the wire.
func ParseTrackKind(value string) (TrackKind, error) {
	switch kind := TrackKind(value); kind {
	case TrackAudio, TrackVideo, TrackScreen:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown track kind %q", value)
	}
}

// CallKind selects which local media a call starts with.
type CallKind int

const (
	// CallVoice starts with the microphone only.
	CallVoice CallKind = iota
	// CallVideo starts with microphone and camera.
	CallVideo
)

func (k CallKind) String() string {
	if k == CallVideo {
		return "video"
	}
	return "voice"
}

// InitialTracks lists the local tracks a call of this kind enables
// once connected.
func (k CallKind) InitialTracks() []TrackKind {
	if k == CallVideo {
		return []TrackKind{TrackAudio, TrackVideo}
	}
	return []TrackKind{TrackAudio}
}
