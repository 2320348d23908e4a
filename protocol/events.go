// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
)

// Phase is the sync loop's state as seen by the rest of the client.
type Phase int

const (
	// PhasePrepared: the initial sync completed and its rooms have been
	// delivered.
	PhasePrepared Phase = iota
	// PhaseSyncing: incremental syncs are succeeding.
	PhaseSyncing
	// PhaseReconnecting: the last sync failed and the loop is backing off.
	PhaseReconnecting
	// PhaseError: the loop stopped on an unrecoverable error (usually a
	// revoked token). Err on the event carries the cause.
	PhaseError
	// PhaseStopped: the loop stopped because of Logout or Close.
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhasePrepared:
		return "prepared"
	case PhaseSyncing:
		return "syncing"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseError:
		return "error"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one normalized protocol event. The concrete types are
// SyncStateChanged, RoomTimelineAppended, RoomMetadataChanged and
// MembershipChanged.
type Event interface {
	protocolEvent()
}

// SyncStateChanged reports a sync loop phase transition.
type SyncStateChanged struct {
	Phase Phase
	Err   error
}

// RoomTimelineAppended carries one m.room.message. Message.State is
// always schema.Sent. Message.CorrelationID is set only on echoes of
// messages this device sent.
type RoomTimelineAppended struct {
	RoomID  ref.RoomID
	Message schema.Message
}

// RoomMetadataChanged carries an m.room.name or m.room.topic change.
// A nil field was not part of this change; a pointer to "" means the
// value was cleared.
type RoomMetadataChanged struct {
	RoomID ref.RoomID
	Name   *string
	Topic  *string
}

// MembershipChanged carries one m.room.member transition.
type MembershipChanged struct {
	RoomID ref.RoomID
	Member schema.Member
}

func (SyncStateChanged) protocolEvent()     {}
func (RoomTimelineAppended) protocolEvent() {}
func (RoomMetadataChanged) protocolEvent()  {}
func (MembershipChanged) protocolEvent()    {}
