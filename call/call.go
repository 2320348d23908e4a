// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package call holds the state of the one call the client takes part
// in: a state machine (idle, connecting, connected, disconnecting), the
// room it is bound to, and the participant roster.
//
// Every call gets a new epoch from Begin. Media events carry the epoch
// they were produced under and are applied only when it matches the
// current epoch while connecting or connected, so events arriving
// after teardown cannot resurrect a participant.
//
// A Call is not safe for concurrent use; the engine's dispatch
// goroutine owns it.
package call

import (
	"maps"
	"slices"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/media"
)

// State is the call's connection state.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Participant is one member of the call roster.
type Participant struct {
	Identity string
	Label    string
	IsLocal  bool
	// Tracks is the set of published track kinds, in audio, video,
	// screen order.
	Tracks      []schema.TrackKind
	Attachments map[schema.TrackKind]media.AttachmentHandle
}

// HasTrack reports whether kind is published.
func (p Participant) HasTrack(kind schema.TrackKind) bool {
	return slices.Contains(p.Tracks, kind)
}

// Session is a copy of the call state handed to the presentation layer.
type Session struct {
	RoomID ref.RoomID
	Kind   schema.CallKind
	State  State
	Epoch  uint64
	// Participants in insertion order, the local participant first.
	Participants []Participant
}

// Active reports whether the session is anything but idle.
func (s Session) Active() bool { return s.State != Idle }

// Call is the active call state.
type Call struct {
	state         State
	roomID        ref.RoomID
	kind          schema.CallKind
	epoch         uint64
	localIdentity string
	participants  []*Participant
}

// New returns an idle Call.
func New() *Call { return &Call{} }

// State returns the current state.
func (c *Call) State() State { return c.state }

// Epoch returns the current call's epoch. Zero before the first Begin.
func (c *Call) Epoch() uint64 { return c.epoch }

// RoomID returns the room the call is bound to, zero when idle.
func (c *Call) RoomID() ref.RoomID { return c.roomID }

// Kind returns the call kind.
func (c *Call) Kind() schema.CallKind { return c.kind }

// LocalIdentity returns the local participant's media identity once
// connected.
func (c *Call) LocalIdentity() string { return c.localIdentity }

// Begin starts a call bound to roomID. Rejected with AlreadyInCall
// unless idle. Returns the new epoch.
func (c *Call) Begin(roomID ref.RoomID, kind schema.CallKind) (uint64, error) {
	if c.state != Idle {
		return 0, clienterr.New(clienterr.AlreadyInCall, "start call",
			"already in a call in %s (%s)", c.roomID, c.state)
	}
	c.epoch++
	c.state = Connecting
	c.roomID = roomID
	c.kind = kind
	c.localIdentity = ""
	c.participants = nil
	return c.epoch, nil
}

// Connected records a successful connect. Returns false when epoch is
// stale or the call is no longer connecting; the caller must then tear
// the media session down.
func (c *Call) Connected(epoch uint64, localIdentity, label string) bool {
	if epoch != c.epoch || c.state != Connecting {
		return false
	}
	c.state = Connected
	c.localIdentity = localIdentity
	if index := c.find(localIdentity); index >= 0 {
		local := c.participants[index]
		c.participants = slices.Delete(c.participants, index, index+1)
		c.participants = slices.Insert(c.participants, 0, local)
	} else {
		c.participants = slices.Insert(c.participants, 0, &Participant{Identity: localIdentity})
	}
	local := c.participants[0]
	local.IsLocal = true
	local.Label = label
	return true
}

// ConnectFailed returns a connecting call to idle. Returns false when
// epoch is stale.
func (c *Call) ConnectFailed(epoch uint64) bool {
	if epoch != c.epoch || c.state != Connecting {
		return false
	}
	c.reset()
	return true
}

// BeginDisconnect starts ending the call and returns the state it was
// in. A connecting call goes straight to idle, so the pending connect's
// result arrives for a call that no longer exists. A connected call
// moves to disconnecting until Disconnected.
func (c *Call) BeginDisconnect() (State, error) {
	previous := c.state
	switch previous {
	case Idle, Disconnecting:
		return previous, clienterr.New(clienterr.NoActiveCall, "end call", "no active call")
	case Connecting:
		c.reset()
	case Connected:
		c.state = Disconnecting
	}
	return previous, nil
}

// Disconnected returns the call to idle unconditionally.
func (c *Call) Disconnected() { c.reset() }

func (c *Call) reset() {
	c.state = Idle
	c.roomID = ref.RoomID{}
	c.localIdentity = ""
	c.participants = nil
}

// accepts reports whether a media event for epoch may be applied.
func (c *Call) accepts(epoch uint64) bool {
	return epoch == c.epoch && (c.state == Connecting || c.state == Connected)
}

func (c *Call) find(identity string) int {
	return slices.IndexFunc(c.participants, func(p *Participant) bool { return p.Identity == identity })
}

func (c *Call) upsert(identity string) *Participant {
	if index := c.find(identity); index >= 0 {
		return c.participants[index]
	}
	participant := &Participant{Identity: identity}
	c.participants = append(c.participants, participant)
	return participant
}

// ParticipantJoined adds a participant. Returns true if the roster
// changed.
func (c *Call) ParticipantJoined(epoch uint64, identity, label string, isLocal bool) bool {
	if !c.accepts(epoch) {
		return false
	}
	if index := c.find(identity); index >= 0 {
		participant := c.participants[index]
		if participant.Label == label || label == "" {
			return false
		}
		participant.Label = label
		return true
	}
	c.participants = append(c.participants, &Participant{Identity: identity, Label: label, IsLocal: isLocal})
	return true
}

// ParticipantLeft removes a participant. Returns true if the roster
// changed.
func (c *Call) ParticipantLeft(epoch uint64, identity string) bool {
	if !c.accepts(epoch) {
		return false
	}
	index := c.find(identity)
	if index < 0 {
		return false
	}
	c.participants = slices.Delete(c.participants, index, index+1)
	return true
}

// TrackChanged publishes or unpublishes a track. An unknown identity
// is added to the roster. Returns true if anything changed.
func (c *Call) TrackChanged(epoch uint64, identity string, kind schema.TrackKind, enabled bool) bool {
	if !c.accepts(epoch) {
		return false
	}
	participant := c.upsert(identity)
	has := participant.HasTrack(kind)
	switch {
	case enabled && !has:
		participant.Tracks = append(participant.Tracks, kind)
		slices.SortFunc(participant.Tracks, compareTrackKinds)
	case !enabled && has:
		participant.Tracks = slices.DeleteFunc(participant.Tracks, func(k schema.TrackKind) bool { return k == kind })
		delete(participant.Attachments, kind)
	default:
		return false
	}
	return true
}

// TrackReady records the attachment handle for a remote track. Returns
// true if anything changed.
func (c *Call) TrackReady(epoch uint64, identity string, kind schema.TrackKind, attachment media.AttachmentHandle) bool {
	if !c.accepts(epoch) {
		return false
	}
	participant := c.upsert(identity)
	if participant.Attachments == nil {
		participant.Attachments = make(map[schema.TrackKind]media.AttachmentHandle)
	}
	if participant.Attachments[kind] == attachment {
		return false
	}
	participant.Attachments[kind] = attachment
	if !participant.HasTrack(kind) {
		participant.Tracks = append(participant.Tracks, kind)
		slices.SortFunc(participant.Tracks, compareTrackKinds)
	}
	return true
}

// LocalHasTrack reports whether the local participant publishes kind.
func (c *Call) LocalHasTrack(kind schema.TrackKind) bool {
	if c.localIdentity == "" {
		return false
	}
	index := c.find(c.localIdentity)
	return index >= 0 && c.participants[index].HasTrack(kind)
}

// Snapshot returns a deep copy of the call state.
func (c *Call) Snapshot() Session {
	session := Session{
		RoomID: c.roomID,
		Kind:   c.kind,
		State:  c.state,
		Epoch:  c.epoch,
	}
	for _, participant := range c.participants {
		copied := *participant
		copied.Tracks = slices.Clone(participant.Tracks)
		copied.Attachments = maps.Clone(participant.Attachments)
		session.Participants = append(session.Participants, copied)
	}
	return session
}

var trackOrder = map[schema.TrackKind]int{
	schema.TrackAudio:  0,
	schema.TrackVideo:  1,
	schema.TrackScreen: 2,
}

func compareTrackKinds(a, b schema.TrackKind) int {
	return trackOrder[a] - trackOrder[b]
}
