// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
)

// Room is a copy of one room's state. Mutating it does not affect the
// Directory.
type Room struct {
	ID       ref.RoomID
	Name     string
	Topic    string
	Kind     schema.RoomKind
	Timeline []schema.Message
	// Members in order of first appearance.
	Members  []schema.Member
	Unread   int
	Loaded   bool
	Selected bool
}

// Summary is one entry of the room list.
type Summary struct {
	ID          ref.RoomID
	DisplayName string
	Topic       string
	Kind        schema.RoomKind
	Unread      int
	Selected    bool
	Members     int
}

// DisplayName is the room's name, or for an unnamed room the label of
// the first joined member other than self, or the room ID.
func (r Room) DisplayName(self ref.UserID) string {
	if r.Name != "" {
		return r.Name
	}
	for _, member := range r.Members {
		if member.UserID != self && member.Membership == schema.Joined {
			return member.Label()
		}
	}
	for _, member := range r.Members {
		if member.UserID != self && member.Membership == schema.Invited {
			return member.Label()
		}
	}
	return r.ID.String()
}

// JoinedCount counts members whose membership is joined.
func (r Room) JoinedCount() int {
	count := 0
	for _, member := range r.Members {
		if member.Membership == schema.Joined {
			count++
		}
	}
	return count
}

// LatestEventID returns the ID of the newest message that has a server
// event ID, for read receipts.
func (r Room) LatestEventID() (ref.EventID, bool) {
	for index := len(r.Timeline) - 1; index >= 0; index-- {
		message := r.Timeline[index]
		if message.State != schema.Sent {
			continue
		}
		if eventID, err := ref.ParseEventID(message.ID); err == nil {
			return eventID, true
		}
	}
	return ref.EventID{}, false
}

// Member returns the member with userID.
func (r Room) Member(userID ref.UserID) (schema.Member, bool) {
	for _, member := range r.Members {
		if member.UserID == userID {
			return member, true
		}
	}
	return schema.Member{}, false
}
