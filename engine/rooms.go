// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strings"

	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/protocol"
)

// Room visibility values for createRoom.
const (
	visibilityPrivate = "private"
)

// SelectRoom makes roomID the selected room, resets its unread counter
// and sends a read receipt for its latest message.
func (e *Engine) SelectRoom(ctx context.Context, roomID ref.RoomID) error {
	_, err := query(ctx, e, func() (struct{}, error) {
		if e.self.State != LoggedIn {
			return struct{}{}, clienterr.ErrNotLoggedIn
		}
		if !e.directory.Select(roomID) {
			return struct{}{}, clienterr.New(clienterr.Validation, "select room", "unknown room %s", roomID)
		}
		e.notifyRoomList()
		e.markRead(roomID)
		return struct{}{}, nil
	})
	return err
}

func (e *Engine) markRead(roomID ref.RoomID) {
	room, ok := e.directory.Get(roomID)
	if !ok {
		return
	}
	eventID, ok := room.LatestEventID()
	if !ok {
		return
	}
	go func() {
		if err := e.config.Protocol.MarkRead(e.ctx, roomID, eventID); err != nil {
			e.logger.Debug("read receipt failed", "room_id", roomID, "event_id", eventID, "error", err)
		}
	}()
}

// SendMessage sends body to the selected room. The returned message is
// the pending local copy; its delivery is reported later through
// OnMessageUpdated. Validation order: a room must be selected, its
// timeline loaded, and the trimmed body non-empty.
func (e *Engine) SendMessage(ctx context.Context, body string) (schema.Message, error) {
	return query(ctx, e, func() (schema.Message, error) {
		roomID := e.directory.SelectedID()
		if roomID.IsZero() {
			return schema.Message{}, clienterr.ErrNoRoomSelected
		}
		room, ok := e.directory.Get(roomID)
		if !ok || !room.Loaded {
			return schema.Message{}, clienterr.ErrTimelineNotLoaded
		}
		body = strings.TrimSpace(body)
		if body == "" {
			return schema.Message{}, clienterr.ErrEmptyMessage
		}

		message, inserted := e.directory.InsertPending(roomID, schema.Message{
			CorrelationID: e.config.NewCorrelationID(),
			Sender:        e.self.UserID,
			Body:          body,
			Timestamp:     e.config.Clock.Now(),
		})
		if !inserted {
			return schema.Message{}, clienterr.New(clienterr.Validation, "send message", "unknown room %s", roomID)
		}
		e.config.Notifier.OnTimelineAppended(roomID, message)
		e.transmit(roomID, message)
		return message, nil
	})
}

// RetryMessage re-sends a failed message under its original
// correlation ID, so a server that did receive the first attempt
// deduplicates it.
func (e *Engine) RetryMessage(ctx context.Context, roomID ref.RoomID, correlationID string) (schema.Message, error) {
	return query(ctx, e, func() (schema.Message, error) {
		message, ok := e.directory.Retry(roomID, correlationID)
		if !ok {
			return schema.Message{}, clienterr.New(clienterr.Validation, "retry message", "no failed message %q in %s", correlationID, roomID)
		}
		e.config.Notifier.OnMessageUpdated(roomID, message, nil)
		e.transmit(roomID, message)
		return message, nil
	})
}

// transmit arms the echo timer for a pending message and sends it. The
// message is confirmed only by its echo in the sync stream; the send
// response is not used for confirmation. A timeout or send error that
// belongs to an earlier attempt of the same message is dropped.
func (e *Engine) transmit(roomID ref.RoomID, message schema.Message) {
	correlationID := message.CorrelationID
	e.stopEchoTimer(correlationID)
	attempt := e.sendAttempts[correlationID] + 1
	e.sendAttempts[correlationID] = attempt
	current := func() bool { return e.sendAttempts[correlationID] == attempt }

	e.echoTimers[correlationID] = e.config.Clock.AfterFunc(e.config.EchoTimeout, func() {
		e.post(func() {
			if !current() {
				return
			}
			delete(e.echoTimers, correlationID)
			e.failMessage(roomID, correlationID,
				clienterr.New(clienterr.SendTimeout, "send message", "no echo within %s", e.config.EchoTimeout))
		})
	})

	sendCtx, cancel := context.WithTimeout(e.ctx, e.config.EchoTimeout)
	go func() {
		defer cancel()
		_, err := e.config.Protocol.SendMessage(sendCtx, roomID, message.Body, correlationID)
		if err == nil {
			return
		}
		e.post(func() {
			if !current() {
				e.logger.Debug("dropping result of a superseded send", "room_id", roomID, "correlation_id", correlationID, "error", err)
				return
			}
			e.stopEchoTimer(correlationID)
			e.failMessage(roomID, correlationID, err)
		})
	}()
}

func (e *Engine) failMessage(roomID ref.RoomID, correlationID string, err error) {
	message, ok := e.directory.MarkFailed(roomID, correlationID)
	if !ok {
		return
	}
	e.logger.Warn("message not delivered", "room_id", roomID, "correlation_id", correlationID, "error", err)
	e.config.Notifier.OnMessageUpdated(roomID, message, err)
}

func (e *Engine) stopEchoTimer(correlationID string) {
	if timer, ok := e.echoTimers[correlationID]; ok {
		timer.Stop()
		delete(e.echoTimers, correlationID)
	}
}

// forgetSend ends tracking of a confirmed message. Any completion still
// in flight for it no longer matches an attempt.
func (e *Engine) forgetSend(correlationID string) {
	e.stopEchoTimer(correlationID)
	delete(e.sendAttempts, correlationID)
}

func (e *Engine) stopAllEchoTimers() {
	for correlationID, timer := range e.echoTimers {
		timer.Stop()
		delete(e.echoTimers, correlationID)
	}
	clear(e.sendAttempts)
}

// RoomRequest describes a group room to create.
type RoomRequest struct {
	Name   string
	Topic  string
	Invite []ref.UserID
}

// CreateRoom creates a private group room and selects it.
func (e *Engine) CreateRoom(ctx context.Context, request RoomRequest) (ref.RoomID, error) {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		return ref.RoomID{}, clienterr.New(clienterr.Validation, "create room", "room name is required")
	}
	return e.createRoom(ctx, protocol.RoomSpec{
		Name:       name,
		Topic:      strings.TrimSpace(request.Topic),
		Invite:     request.Invite,
		Preset:     schema.PresetPrivateChat,
		Visibility: visibilityPrivate,
	}, nil)
}

// CreateVoiceChannel creates a room whose name carries the voice prefix,
// so every client classifies it as a voice channel.
func (e *Engine) CreateVoiceChannel(ctx context.Context, name string) (ref.RoomID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ref.RoomID{}, clienterr.New(clienterr.Validation, "create voice channel", "channel name is required")
	}
	if prefix := e.config.VoicePrefix; prefix != "" && !strings.HasPrefix(name, prefix) {
		name = prefix + " " + name
	}
	return e.createRoom(ctx, protocol.RoomSpec{
		Name:       name,
		Preset:     schema.PresetPrivateChat,
		Visibility: visibilityPrivate,
		RoomType:   schema.VoiceRoomType,
	}, nil)
}

// StartDirectMessage opens a direct room with user and selects it. A
// bare localpart is qualified with the local user's server. An existing
// direct room with the user is reused.
func (e *Engine) StartDirectMessage(ctx context.Context, user string) (ref.RoomID, error) {
	return submit(ctx, e, func(resolve func(ref.RoomID, error)) {
		if e.self.State != LoggedIn {
			resolve(ref.RoomID{}, clienterr.ErrNotLoggedIn)
			return
		}
		target, err := e.qualifyUser(user)
		if err != nil {
			resolve(ref.RoomID{}, err)
			return
		}
		if existing, ok := e.findDirectRoom(target); ok {
			e.directory.Select(existing)
			e.notifyRoomList()
			resolve(existing, nil)
			return
		}
		self := e.self.UserID
		e.createRoomLocked(ctx, protocol.RoomSpec{
			Invite:     []ref.UserID{target},
			IsDirect:   true,
			Preset:     schema.PresetTrustedPrivateChat,
			Visibility: visibilityPrivate,
		}, func(roomID ref.RoomID) {
			e.directory.ApplyMembership(roomID, schema.Member{UserID: self, Membership: schema.Joined})
			e.directory.ApplyMembership(roomID, schema.Member{UserID: target, Membership: schema.Invited})
		}, resolve)
	})
}

func (e *Engine) qualifyUser(user string) (ref.UserID, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return ref.UserID{}, clienterr.New(clienterr.Validation, "start direct message", "user is required")
	}
	var target ref.UserID
	var err error
	if strings.HasPrefix(user, "@") {
		target, err = ref.ParseUserID(user)
	} else {
		target, err = ref.QualifyUserID(user, e.self.UserID.Server())
	}
	if err != nil {
		return ref.UserID{}, clienterr.Wrap(clienterr.Validation, "start direct message", err)
	}
	if target == e.self.UserID {
		return ref.UserID{}, clienterr.New(clienterr.Validation, "start direct message", "cannot message yourself")
	}
	return target, nil
}

// findDirectRoom returns an unnamed room whose only other active member
// is target. The target may not have joined yet, so the room's
// classification is not used.
func (e *Engine) findDirectRoom(target ref.UserID) (ref.RoomID, bool) {
	for _, summary := range e.directory.List() {
		if summary.Kind == schema.RoomVoice {
			continue
		}
		room, ok := e.directory.Get(summary.ID)
		if !ok || room.Name != "" {
			continue
		}
		var others []ref.UserID
		for _, member := range room.Members {
			active := member.Membership == schema.Joined || member.Membership == schema.Invited
			if active && member.UserID != e.self.UserID {
				others = append(others, member.UserID)
			}
		}
		if len(others) == 1 && others[0] == target {
			return summary.ID, true
		}
	}
	return ref.RoomID{}, false
}

func (e *Engine) createRoom(ctx context.Context, spec protocol.RoomSpec, seed func(ref.RoomID)) (ref.RoomID, error) {
	return submit(ctx, e, func(resolve func(ref.RoomID, error)) {
		if e.self.State != LoggedIn {
			resolve(ref.RoomID{}, clienterr.ErrNotLoggedIn)
			return
		}
		e.createRoomLocked(ctx, spec, seed, resolve)
	})
}

// createRoomLocked must run on the dispatch goroutine. On success the
// room is added to the directory (seeded by seed, if set), marked
// loaded and selected before resolve is called.
func (e *Engine) createRoomLocked(ctx context.Context, spec protocol.RoomSpec, seed func(ref.RoomID), resolve func(ref.RoomID, error)) {
	goAsync(e, func() (ref.RoomID, error) {
		return e.config.Protocol.CreateRoom(ctx, spec)
	}, func(roomID ref.RoomID, err error) {
		if err != nil {
			resolve(ref.RoomID{}, err)
			return
		}
		if e.self.State != LoggedIn {
			resolve(roomID, nil)
			return
		}
		e.adoptRoom(roomID, func() {
			name := spec.Name
			var topic *string
			if spec.Topic != "" {
				topic = &spec.Topic
			}
			if name != "" {
				e.directory.ApplyMetadata(roomID, &name, topic)
			}
			if seed != nil {
				seed(roomID)
			}
		})
		e.logger.Info("created room", "room_id", roomID, "name", spec.Name, "direct", spec.IsDirect)
		resolve(roomID, nil)
	})
}

// adoptRoom makes a room this client just created or joined usable
// immediately, ahead of its first sync: the room exists, its timeline
// counts as loaded, and it is selected.
func (e *Engine) adoptRoom(roomID ref.RoomID, seed func()) {
	e.directory.Ensure(roomID)
	if seed != nil {
		seed()
	}
	e.directory.SetLoaded(roomID)
	e.directory.Select(roomID)
	e.notifyRoomList()
}

// JoinRoom joins a room by ID (!id:server) or alias (#alias:server) and
// selects it. Anything else fails with a Validation error before any
// network request.
func (e *Engine) JoinRoom(ctx context.Context, idOrAlias string) (ref.RoomID, error) {
	idOrAlias = strings.TrimSpace(idOrAlias)
	if _, _, _, err := ref.ParseJoinTarget(idOrAlias); err != nil {
		return ref.RoomID{}, clienterr.Wrap(clienterr.Validation, "join room", err)
	}
	return submit(ctx, e, func(resolve func(ref.RoomID, error)) {
		if e.self.State != LoggedIn {
			resolve(ref.RoomID{}, clienterr.ErrNotLoggedIn)
			return
		}
		goAsync(e, func() (ref.RoomID, error) {
			return e.config.Protocol.JoinRoom(ctx, idOrAlias)
		}, func(roomID ref.RoomID, err error) {
			if err != nil {
				resolve(ref.RoomID{}, err)
				return
			}
			if e.self.State == LoggedIn {
				e.adoptRoom(roomID, nil)
			}
			e.logger.Info("joined room", "room_id", roomID, "target", idOrAlias)
			resolve(roomID, nil)
		})
	})
}

// Rooms returns the sorted room list.
func (e *Engine) Rooms(ctx context.Context) ([]directory.Summary, error) {
	return query(ctx, e, func() ([]directory.Summary, error) { return e.directory.List(), nil })
}

// Room returns a copy of one room, timeline and members included.
func (e *Engine) Room(ctx context.Context, roomID ref.RoomID) (directory.Room, error) {
	return query(ctx, e, func() (directory.Room, error) {
		room, ok := e.directory.Get(roomID)
		if !ok {
			return directory.Room{}, clienterr.New(clienterr.Validation, "room", "unknown room %s", roomID)
		}
		return room, nil
	})
}

// SelectedRoom returns a copy of the selected room. ok is false when
// no room is selected.
func (e *Engine) SelectedRoom(ctx context.Context) (room directory.Room, ok bool, err error) {
	type selected struct {
		room directory.Room
		ok   bool
	}
	result, err := query(ctx, e, func() (selected, error) {
		room, ok := e.directory.Selected()
		return selected{room: room, ok: ok}, nil
	})
	return result.room, result.ok, err
}
