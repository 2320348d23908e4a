// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import "github.com/dragon-chat/dragon/lib/schema"

// AttachmentHandle identifies a remote track for the presentation
// layer. Opaque to the client core.
type AttachmentHandle string

// Event is one media session event. The concrete types are
// ParticipantJoined, ParticipantLeft, ParticipantTrackChanged and
// TrackReady.
type Event interface {
	EventEpoch() uint64
}

// ParticipantJoined reports a participant entering the session. The
// local participant is announced with IsLocal set once Connect
// succeeds.
type ParticipantJoined struct {
	Epoch    uint64
	Identity string
	IsLocal  bool
}

// ParticipantLeft reports a participant leaving. A ParticipantLeft for
// the local identity means the connection to the SFU was lost.
type ParticipantLeft struct {
	Epoch    uint64
	Identity string
}

// ParticipantTrackChanged reports a track being published or
// unpublished. For local tracks a non-nil Err means the requested
// change failed and Enabled is the state that was requested.
type ParticipantTrackChanged struct {
	Epoch    uint64
	Identity string
	Kind     schema.TrackKind
	Enabled  bool
	Err      error
}

// TrackReady reports remote media ready for attachment.
type TrackReady struct {
	Epoch      uint64
	Identity   string
	Kind       schema.TrackKind
	Attachment AttachmentHandle
}

func (e ParticipantJoined) EventEpoch() uint64       { return e.Epoch }
func (e ParticipantLeft) EventEpoch() uint64         { return e.Epoch }
func (e ParticipantTrackChanged) EventEpoch() uint64 { return e.Epoch }
func (e TrackReady) EventEpoch() uint64              { return e.Epoch }
