// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/messaging"
)

// TranslateSync converts one sync response into normalized events.
// Joined rooms come first, then invites, then rooms left; each group
// in sorted room ID order. Events that cannot be normalized (unknown
// types, malformed state keys, messages without a body) are skipped
// and logged at debug level.
func TranslateSync(response *messaging.SyncResponse, logger *slog.Logger) []Event {
	if response == nil {
		return nil
	}
	var events []Event

	for _, roomID := range sortedRoomIDs(response.Rooms.Join) {
		room := response.Rooms.Join[roomID]
		events = appendRoomEvents(events, roomID, room.State.Events, room.Timeline.Events, logger)
	}
	for _, roomID := range sortedRoomIDs(response.Rooms.Invite) {
		room := response.Rooms.Invite[roomID]
		events = appendRoomEvents(events, roomID, room.InviteState.Events, nil, logger)
	}
	for _, roomID := range sortedRoomIDs(response.Rooms.Leave) {
		room := response.Rooms.Leave[roomID]
		events = appendRoomEvents(events, roomID, room.State.Events, room.Timeline.Events, logger)
	}
	return events
}

func sortedRoomIDs[V any](rooms map[ref.RoomID]V) []ref.RoomID {
	ids := make([]ref.RoomID, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ref.RoomID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

func appendRoomEvents(events []Event, roomID ref.RoomID, state, timeline []messaging.Event, logger *slog.Logger) []Event {
	for _, event := range state {
		if normalized, ok := translateEvent(roomID, event, logger); ok {
			events = append(events, normalized)
		}
	}
	for _, event := range timeline {
		if normalized, ok := translateEvent(roomID, event, logger); ok {
			events = append(events, normalized)
		}
	}
	return events
}

func translateEvent(roomID ref.RoomID, event messaging.Event, logger *slog.Logger) (Event, bool) {
	switch event.Type {
	case schema.EventTypeRoomMessage:
		if event.StateKey != nil {
			return nil, false
		}
		body, ok := event.Content["body"].(string)
		if !ok {
			// Redacted messages keep their type but lose their content.
			return nil, false
		}
		message := schema.Message{
			ID:            event.EventID.String(),
			CorrelationID: event.TransactionID(),
			Sender:        event.Sender,
			Body:          body,
			Timestamp:     time.UnixMilli(event.OriginServerTS),
			State:         schema.Sent,
		}
		if event.ContentString("format") == schema.FormatHTML {
			message.FormattedBody = event.ContentString("formatted_body")
		}
		return RoomTimelineAppended{RoomID: roomID, Message: message}, true

	case schema.EventTypeRoomName:
		if event.StateKey == nil {
			return nil, false
		}
		name := event.ContentString("name")
		return RoomMetadataChanged{RoomID: roomID, Name: &name}, true

	case schema.EventTypeRoomTopic:
		if event.StateKey == nil {
			return nil, false
		}
		topic := event.ContentString("topic")
		return RoomMetadataChanged{RoomID: roomID, Topic: &topic}, true

	case schema.EventTypeRoomMember:
		if event.StateKey == nil {
			return nil, false
		}
		userID, err := ref.ParseUserID(*event.StateKey)
		if err != nil {
			logger.Debug("skipping member event with invalid state key",
				"room_id", roomID, "state_key", *event.StateKey, "error", err)
			return nil, false
		}
		membership, ok := schema.ParseMembership(event.ContentString("membership"))
		if !ok {
			logger.Debug("skipping member event with unsupported membership",
				"room_id", roomID, "user_id", userID, "membership", event.ContentString("membership"))
			return nil, false
		}
		return MembershipChanged{
			RoomID: roomID,
			Member: schema.Member{
				UserID:      userID,
				DisplayName: event.ContentString("displayname"),
				Membership:  membership,
			},
		}, true
	}
	return nil, false
}
