// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"fmt"

	"github.com/dragon-chat/dragon/lib/codec"
	"github.com/dragon-chat/dragon/lib/schema"
)

// ControlLabel is the data channel label carrying control messages.
const ControlLabel = "control"

// Control message types.
const (
	ControlJoin  = "join"
	ControlLeave = "leave"
	ControlTrack = "track"
)

// ControlMessage is one message on the control channel. Kind and
// Enabled are meaningful for ControlTrack only.
type ControlMessage struct {
	Type     string           `cbor:"type"`
	Identity string           `cbor:"identity"`
	Kind     schema.TrackKind `cbor:"kind,omitempty"`
	Enabled  bool             `cbor:"enabled,omitempty"`
}

// EncodeControl serializes a control message.
func EncodeControl(message ControlMessage) ([]byte, error) {
	return codec.Marshal(message)
}

// DecodeControl parses and validates a control message.
func DecodeControl(data []byte) (ControlMessage, error) {
	var message ControlMessage
	if err := codec.Unmarshal(data, &message); err != nil {
		return ControlMessage{}, fmt.Errorf("decoding control message: %w", err)
	}
	if message.Identity == "" {
		return ControlMessage{}, fmt.Errorf("control message %q has no identity", message.Type)
	}
	switch message.Type {
	case ControlJoin, ControlLeave:
	case ControlTrack:
		if _, err := schema.ParseTrackKind(string(message.Kind)); err != nil {
			return ControlMessage{}, fmt.Errorf("control track message: %w", err)
		}
	default:
		return ControlMessage{}, fmt.Errorf("unknown control message type %q", message.Type)
	}
	return message, nil
}

// event converts a decoded control message into a media event.
func (m ControlMessage) event(epoch uint64) Event {
	switch m.Type {
	case ControlJoin:
		return ParticipantJoined{Epoch: epoch, Identity: m.Identity}
	case ControlLeave:
		return ParticipantLeft{Epoch: epoch, Identity: m.Identity}
	default:
		return ParticipantTrackChanged{Epoch: epoch, Identity: m.Identity, Kind: m.Kind, Enabled: m.Enabled}
	}
}
