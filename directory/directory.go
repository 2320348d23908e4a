// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory is the client's authoritative map of rooms: their
// classification, bounded timelines, membership and unread counters.
//
// A Directory is not safe for concurrent use. The engine's dispatch
// goroutine owns it; everything else reads the copies returned by Get,
// Selected and List.
//
// Timelines are bounded by a retention window. Truncation drops the
// oldest messages that are not pending, so a message awaiting its echo
// is never lost; when every message in a room is pending the bound is
// exceeded until some of them resolve.
package directory

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
)

// DefaultRetention is the timeline bound when Config.Retention is zero.
const DefaultRetention = 50

// Config configures a Directory.
type Config struct {
	// Retention bounds each room's timeline.
	Retention int
	// VoicePrefix marks voice channel names. Empty disables voice
	// classification.
	VoicePrefix string
}

// Directory holds every known room.
type Directory struct {
	config   Config
	self     ref.UserID
	rooms    map[ref.RoomID]*room
	selected ref.RoomID
	prepared bool
}

type room struct {
	id          ref.RoomID
	name        string
	topic       string
	kind        schema.RoomKind
	timeline    []schema.Message
	members     []schema.Member
	memberIndex map[ref.UserID]int
	unread      int
	loaded      bool
}

// New returns an empty Directory.
func New(config Config) *Directory {
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	return &Directory{
		config: config,
		rooms:  make(map[ref.RoomID]*room),
	}
}

// SetSelf records the local user, used for display names of direct
// rooms.
func (d *Directory) SetSelf(userID ref.UserID) { d.self = userID }

// Retention returns the timeline bound in effect.
func (d *Directory) Retention() int { return d.config.Retention }

// Len returns the number of rooms.
func (d *Directory) Len() int { return len(d.rooms) }

// Ensure creates an empty room if roomID is unknown. Returns true when
// the room was created. Rooms first seen after MarkPrepared are loaded
// immediately: their whole history so far is whatever arrives next.
func (d *Directory) Ensure(roomID ref.RoomID) bool {
	if _, ok := d.rooms[roomID]; ok {
		return false
	}
	d.rooms[roomID] = &room{
		id:          roomID,
		kind:        schema.RoomGroup,
		memberIndex: make(map[ref.UserID]int),
		loaded:      d.prepared,
	}
	return true
}

// MarkPrepared records that the initial sync has been applied: every
// known room's timeline counts as loaded, and messages appended from
// now on are live and count towards unread.
func (d *Directory) MarkPrepared() {
	d.prepared = true
	for _, r := range d.rooms {
		r.loaded = true
	}
}

// Prepared reports whether MarkPrepared has been called since the last
// Clear.
func (d *Directory) Prepared() bool { return d.prepared }

// SetLoaded marks one room's timeline as loaded.
func (d *Directory) SetLoaded(roomID ref.RoomID) {
	if r, ok := d.rooms[roomID]; ok {
		r.loaded = true
	}
}

// ApplyMetadata applies a name and/or topic change. A nil pointer
// leaves the field alone. Returns true if anything visible in the room
// list changed, including the room's kind.
func (d *Directory) ApplyMetadata(roomID ref.RoomID, name, topic *string) bool {
	created := d.Ensure(roomID)
	r := d.rooms[roomID]
	changed := created
	if name != nil && *name != r.name {
		r.name = *name
		changed = true
	}
	if topic != nil && *topic != r.topic {
		r.topic = *topic
		changed = true
	}
	if d.reclassify(r) {
		changed = true
	}
	return changed
}

// ApplyMembership upserts a member. membersChanged is false when the
// member already had this exact state; listChanged is true when the
// room was created or its kind changed as a result.
func (d *Directory) ApplyMembership(roomID ref.RoomID, member schema.Member) (membersChanged, listChanged bool) {
	listChanged = d.Ensure(roomID)
	r := d.rooms[roomID]
	if index, ok := r.memberIndex[member.UserID]; ok {
		if r.members[index] != member {
			r.members[index] = member
			membersChanged = true
		}
	} else {
		r.memberIndex[member.UserID] = len(r.members)
		r.members = append(r.members, member)
		membersChanged = true
	}
	if d.reclassify(r) {
		listChanged = true
	}
	return membersChanged, listChanged
}

// reclassify recomputes r's kind. Returns true if it changed.
func (d *Directory) reclassify(r *room) bool {
	kind := Classify(r.name, r.members, d.config.VoicePrefix)
	if kind == r.kind {
		return false
	}
	r.kind = kind
	return true
}

// Classify derives a room kind. A name starting with voicePrefix is a
// voice channel regardless of membership; otherwise exactly two joined
// members make a direct room; anything else is a group.
func Classify(name string, members []schema.Member, voicePrefix string) schema.RoomKind {
	if voicePrefix != "" && strings.HasPrefix(name, voicePrefix) {
		return schema.RoomVoice
	}
	joined := 0
	for _, member := range members {
		if member.Membership == schema.Joined {
			joined++
		}
	}
	if joined == 2 {
		return schema.RoomDirect
	}
	return schema.RoomGroup
}

// AppendOutcome says what Append did with a message.
type AppendOutcome int

const (
	// Appended: a new message was added to the timeline.
	Appended AppendOutcome = iota
	// Confirmed: the message was the echo of a local send and the
	// local copy moved to sent.
	Confirmed
	// Duplicate: a message with this ID is already in the timeline.
	Duplicate
)

// Append applies a message received from the server. An echo whose
// correlation ID matches a local message confirms it in place; the
// returned message is the stored copy after the change.
func (d *Directory) Append(roomID ref.RoomID, message schema.Message) (schema.Message, AppendOutcome) {
	d.Ensure(roomID)
	r := d.rooms[roomID]

	if message.CorrelationID != "" {
		if index := r.findCorrelation(message.CorrelationID); index >= 0 {
			return d.confirm(r, index, message.ID, message.Timestamp), Confirmed
		}
	}
	for index := range r.timeline {
		if r.timeline[index].ID == message.ID {
			return r.timeline[index], Duplicate
		}
	}

	message.State = schema.Sent
	r.timeline = append(r.timeline, message)
	if d.prepared && roomID != d.selected {
		r.unread++
	}
	r.timeline = Trim(r.timeline, d.config.Retention)
	return message, Appended
}

// InsertPending appends a locally sent message in the pending state.
// Returns false if the room is unknown.
func (d *Directory) InsertPending(roomID ref.RoomID, message schema.Message) (schema.Message, bool) {
	r, ok := d.rooms[roomID]
	if !ok {
		return schema.Message{}, false
	}
	message.State = schema.Pending
	if message.ID == "" {
		message.ID = message.CorrelationID
	}
	r.timeline = append(r.timeline, message)
	r.timeline = Trim(r.timeline, d.config.Retention)
	return message, true
}

// ConfirmPending moves a local message to sent with its server event
// ID. Returns false if no local message has that correlation ID.
func (d *Directory) ConfirmPending(roomID ref.RoomID, correlationID, eventID string, timestamp time.Time) (schema.Message, bool) {
	r, ok := d.rooms[roomID]
	if !ok {
		return schema.Message{}, false
	}
	index := r.findCorrelation(correlationID)
	if index < 0 {
		return schema.Message{}, false
	}
	return d.confirm(r, index, eventID, timestamp), true
}

// MarkFailed moves a pending local message to failed. Returns false if
// the message is not pending (already confirmed, already failed, or
// truncated). Retention is not re-applied: the failed message stays in
// the timeline until a later append pushes it out.
func (d *Directory) MarkFailed(roomID ref.RoomID, correlationID string) (schema.Message, bool) {
	return d.transition(roomID, correlationID, schema.Pending, schema.Failed)
}

// Retry moves a failed local message back to pending for a re-send
// under the same correlation ID.
func (d *Directory) Retry(roomID ref.RoomID, correlationID string) (schema.Message, bool) {
	return d.transition(roomID, correlationID, schema.Failed, schema.Pending)
}

func (d *Directory) transition(roomID ref.RoomID, correlationID string, from, to schema.DeliveryState) (schema.Message, bool) {
	r, ok := d.rooms[roomID]
	if !ok {
		return schema.Message{}, false
	}
	index := r.findCorrelation(correlationID)
	if index < 0 || r.timeline[index].State != from {
		return schema.Message{}, false
	}
	r.timeline[index].State = to
	return r.timeline[index], true
}

// FindMessage returns the message with the given correlation ID.
func (d *Directory) FindMessage(roomID ref.RoomID, correlationID string) (schema.Message, bool) {
	r, ok := d.rooms[roomID]
	if !ok {
		return schema.Message{}, false
	}
	index := r.findCorrelation(correlationID)
	if index < 0 {
		return schema.Message{}, false
	}
	return r.timeline[index], true
}

func (r *room) findCorrelation(correlationID string) int {
	for index := range r.timeline {
		if r.timeline[index].CorrelationID == correlationID {
			return index
		}
	}
	return -1
}

// confirm marks the message at index as sent and re-applies retention,
// which may drop the message itself if it is the oldest. A late echo
// for a message that already timed out still upgrades it: the server
// has it.
func (d *Directory) confirm(r *room, index int, eventID string, timestamp time.Time) schema.Message {
	message := &r.timeline[index]
	if eventID != "" {
		message.ID = eventID
	}
	if !timestamp.IsZero() {
		message.Timestamp = timestamp
	}
	message.State = schema.Sent
	confirmed := *message
	r.timeline = Trim(r.timeline, d.config.Retention)
	return confirmed
}

// Trim drops the oldest non-pending messages until timeline fits within
// bound. Pending messages are never dropped.
func Trim(timeline []schema.Message, bound int) []schema.Message {
	excess := len(timeline) - bound
	if excess <= 0 {
		return timeline
	}
	kept := timeline[:0:0]
	for _, message := range timeline {
		if excess > 0 && message.State != schema.Pending {
			excess--
			continue
		}
		kept = append(kept, message)
	}
	return kept
}

// Select makes roomID the selected room and resets its unread counter.
// Returns false if the room is unknown; the selection is unchanged.
func (d *Directory) Select(roomID ref.RoomID) bool {
	r, ok := d.rooms[roomID]
	if !ok {
		return false
	}
	d.selected = roomID
	r.unread = 0
	return true
}

// SelectedID returns the selected room ID, zero when none.
func (d *Directory) SelectedID() ref.RoomID { return d.selected }

// Selected returns a copy of the selected room.
func (d *Directory) Selected() (Room, bool) {
	if d.selected.IsZero() {
		return Room{}, false
	}
	return d.Get(d.selected)
}

// Get returns a copy of a room.
func (d *Directory) Get(roomID ref.RoomID) (Room, bool) {
	r, ok := d.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return d.snapshot(r), true
}

// List returns a summary of every room, sorted by kind (groups, direct
// rooms, voice channels), then display name, then ID.
func (d *Directory) List() []Summary {
	summaries := make([]Summary, 0, len(d.rooms))
	for _, r := range d.rooms {
		snapshot := d.snapshot(r)
		summaries = append(summaries, Summary{
			ID:          r.id,
			DisplayName: snapshot.DisplayName(d.self),
			Topic:       r.topic,
			Kind:        r.kind,
			Unread:      r.unread,
			Selected:    r.id == d.selected,
			Members:     snapshot.JoinedCount(),
		})
	}
	slices.SortFunc(summaries, func(a, b Summary) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return summaries
}

// Clear forgets every room and the selection. Used on logout.
func (d *Directory) Clear() {
	d.rooms = make(map[ref.RoomID]*room)
	d.selected = ref.RoomID{}
	d.prepared = false
	d.self = ref.UserID{}
}

func (d *Directory) snapshot(r *room) Room {
	return Room{
		ID:       r.id,
		Name:     r.name,
		Topic:    r.topic,
		Kind:     r.kind,
		Timeline: slices.Clone(r.timeline),
		Members:  slices.Clone(r.members),
		Unread:   r.unread,
		Loaded:   r.loaded,
		Selected: r.id == d.selected,
	}
}
