// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/media"
)

// StartCall starts a call of the given kind in the selected room. It
// returns once the media session is connected and the initial local
// tracks have been requested, or with the error that ended the
// attempt. A connect that outlives ConnectTimeout fails with a
// Connect-kind error and leaves the call idle.
func (e *Engine) StartCall(ctx context.Context, kind schema.CallKind) (call.Session, error) {
	return submit(ctx, e, func(resolve func(call.Session, error)) {
		if e.self.State != LoggedIn {
			resolve(call.Session{}, clienterr.ErrNotLoggedIn)
			return
		}
		roomID := e.directory.SelectedID()
		if roomID.IsZero() {
			resolve(call.Session{}, clienterr.ErrNoRoomSelected)
			return
		}
		epoch, err := e.call.Begin(roomID, kind)
		if err != nil {
			resolve(call.Session{}, err)
			return
		}
		e.logger.Info("starting call", "room_id", roomID, "kind", kind, "epoch", epoch)
		e.notifyCall(nil)

		connectCtx, cancel := context.WithCancel(e.ctx)
		e.connectCancel = cancel
		e.connectReply = resolve
		e.connectTimer = e.config.Clock.AfterFunc(e.config.ConnectTimeout, func() {
			e.post(func() {
				e.connectFailed(epoch, clienterr.New(clienterr.Connect, "start call", "not connected within %s", e.config.ConnectTimeout))
			})
		})

		participant := e.self.UserID.String()
		mediaURL := e.mediaURL()
		goAsync(e, func() (media.Handle, error) {
			return e.connectMedia(connectCtx, roomID, participant, mediaURL, epoch)
		}, func(handle media.Handle, err error) {
			e.connectResolved(epoch, handle, err)
		})
	})
}

// connectMedia runs off the dispatch goroutine. TURN credentials are
// optional: without them the session uses host candidates only.
func (e *Engine) connectMedia(ctx context.Context, roomID ref.RoomID, participant, mediaURL string, epoch uint64) (media.Handle, error) {
	turn, err := e.config.Protocol.TURN(ctx)
	if err != nil {
		e.logger.Debug("no TURN credentials", "error", err)
		e.config.Media.SetICEConfig(media.ICEConfig{})
	} else {
		e.config.Media.SetICEConfig(media.ICEConfigFromTURN(turn.URIs, turn.Username, turn.Password))
	}

	token, err := e.config.Tokens.RequestMediaToken(ctx, roomID, participant)
	if err != nil {
		return media.Handle{}, err
	}
	return e.config.Media.Connect(ctx, mediaURL, token, epoch)
}

func (e *Engine) connectResolved(epoch uint64, handle media.Handle, err error) {
	if err != nil {
		e.connectFailed(epoch, clienterr.Wrap(clienterr.Connect, "start call", err))
		return
	}

	label := e.participantLabel(e.call.RoomID(), handle.LocalIdentity)
	if !e.call.Connected(epoch, handle.LocalIdentity, label) {
		// The call was ended or replaced while this connect was in
		// flight.
		e.logger.Info("disconnecting stale media session", "epoch", epoch, "current_epoch", e.call.Epoch())
		e.disconnectAsync(handle)
		return
	}

	e.callHandle = &handle
	reply := e.connectReply
	e.clearConnect()
	for _, kind := range e.call.Kind().InitialTracks() {
		e.enableTrack(kind, true)
	}

	e.logger.Info("call connected", "room_id", e.call.RoomID(), "identity", handle.LocalIdentity, "epoch", epoch)
	snapshot := e.call.Snapshot()
	e.config.Notifier.OnCallStateChanged(snapshot, nil)
	if reply != nil {
		reply(snapshot, nil)
	}
}

func (e *Engine) connectFailed(epoch uint64, err error) {
	if !e.call.ConnectFailed(epoch) {
		return
	}
	e.logger.Warn("call connect failed", "epoch", epoch, "error", err)
	e.abandonConnect(err)
	e.notifyCall(err)
}

// abandonConnect answers a pending StartCall with err and releases the
// connect attempt's context and timer.
func (e *Engine) abandonConnect(err error) {
	reply := e.connectReply
	e.clearConnect()
	if reply != nil {
		reply(call.Session{}, err)
	}
}

func (e *Engine) clearConnect() {
	if e.connectTimer != nil {
		e.connectTimer.Stop()
		e.connectTimer = nil
	}
	if e.connectCancel != nil {
		e.connectCancel()
		e.connectCancel = nil
	}
	e.connectReply = nil
}

// EndCall ends the active call. A call still connecting goes straight
// to idle; its connect, should it still succeed, is torn down on
// arrival. A connected call disconnects and returns once idle.
func (e *Engine) EndCall(ctx context.Context) error {
	_, err := submit(ctx, e, func(resolve func(struct{}, error)) {
		previous, err := e.call.BeginDisconnect()
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		if previous == call.Connecting {
			e.abandonConnect(clienterr.New(clienterr.Connect, "start call", "call ended before it connected"))
			e.logger.Info("call cancelled while connecting")
			e.notifyCall(nil)
			resolve(struct{}{}, nil)
			return
		}

		e.notifyCall(nil)
		e.disconnectDone = append(e.disconnectDone, func(error) { resolve(struct{}{}, nil) })
		handle := e.callHandle
		e.callHandle = nil
		goAsync(e, func() (struct{}, error) {
			if handle == nil {
				return struct{}{}, nil
			}
			return struct{}{}, e.config.Media.Disconnect(*handle)
		}, func(_ struct{}, err error) {
			if err != nil {
				e.logger.Warn("media disconnect failed", "error", err)
			}
			if e.call.State() == call.Disconnecting {
				e.call.Disconnected()
				e.logger.Info("call ended")
				e.notifyCall(nil)
			}
			for _, done := range e.disconnectDone {
				done(err)
			}
			e.disconnectDone = nil
		})
	})
	return err
}

// teardownCall drops any call immediately, without waiting for the
// media adapter. Used when the session ends or media is lost. err, if
// set, is delivered with the idle notification.
func (e *Engine) teardownCall(err error) {
	switch e.call.State() {
	case call.Idle:
		return
	case call.Connecting:
		e.call.BeginDisconnect()
		e.abandonConnect(clienterr.New(clienterr.Connect, "start call", "call torn down before it connected"))
	case call.Connected:
		if e.callHandle != nil {
			e.disconnectAsync(*e.callHandle)
			e.callHandle = nil
		}
		e.call.Disconnected()
	case call.Disconnecting:
		e.call.Disconnected()
	}
	e.notifyCall(err)
}

func (e *Engine) disconnectAsync(handle media.Handle) {
	go func() {
		if err := e.config.Media.Disconnect(handle); err != nil {
			e.logger.Warn("media disconnect failed", "handle", handle.ID, "error", err)
		}
	}()
}

// ToggleMic flips the local microphone. Returns the requested state;
// the change itself is confirmed by a call state notification.
func (e *Engine) ToggleMic(ctx context.Context) (bool, error) {
	return e.toggle(ctx, schema.TrackAudio)
}

// ToggleCamera flips the local camera.
func (e *Engine) ToggleCamera(ctx context.Context) (bool, error) {
	return e.toggle(ctx, schema.TrackVideo)
}

// ShareScreen flips screen sharing.
func (e *Engine) ShareScreen(ctx context.Context) (bool, error) {
	return e.toggle(ctx, schema.TrackScreen)
}

func (e *Engine) toggle(ctx context.Context, kind schema.TrackKind) (bool, error) {
	return query(ctx, e, func() (bool, error) {
		if e.call.State() != call.Connected {
			return false, clienterr.New(clienterr.NoActiveCall, "toggle "+string(kind), "no connected call")
		}
		enabled := !e.call.LocalHasTrack(kind)
		e.enableTrack(kind, enabled)
		return enabled, nil
	})
}

func (e *Engine) enableTrack(kind schema.TrackKind, enabled bool) {
	switch kind {
	case schema.TrackAudio:
		e.config.Media.EnableLocalAudio(enabled)
	case schema.TrackVideo:
		e.config.Media.EnableLocalVideo(enabled)
	case schema.TrackScreen:
		e.config.Media.EnableScreenShare(enabled)
	}
}

// Call returns a snapshot of the active call.
func (e *Engine) Call(ctx context.Context) (call.Session, error) {
	return query(ctx, e, func() (call.Session, error) { return e.call.Snapshot(), nil })
}

// handleMediaEvent applies one media adapter event. Events from an
// earlier epoch are dropped by the call state itself.
func (e *Engine) handleMediaEvent(event media.Event) {
	switch event := event.(type) {
	case media.ParticipantJoined:
		label := e.participantLabel(e.call.RoomID(), event.Identity)
		if e.call.ParticipantJoined(event.Epoch, event.Identity, label, event.IsLocal) {
			e.notifyCall(nil)
		}

	case media.ParticipantLeft:
		if e.isCurrentLocal(event.Epoch, event.Identity) {
			e.logger.Warn("media connection lost", "epoch", event.Epoch)
			e.teardownCall(clienterr.New(clienterr.Connect, "call", "media connection lost"))
			return
		}
		if e.call.ParticipantLeft(event.Epoch, event.Identity) {
			e.notifyCall(nil)
		}

	case media.ParticipantTrackChanged:
		if event.Err != nil {
			if event.Epoch == e.call.Epoch() && e.call.State() == call.Connected {
				e.logger.Warn("local track change failed", "kind", event.Kind, "enabled", event.Enabled, "error", event.Err)
				e.notifyCall(event.Err)
			}
			return
		}
		if e.call.TrackChanged(event.Epoch, event.Identity, event.Kind, event.Enabled) {
			e.notifyCall(nil)
		}

	case media.TrackReady:
		if e.call.TrackReady(event.Epoch, event.Identity, event.Kind, event.Attachment) {
			e.notifyCall(nil)
		}

	default:
		e.logger.Warn("ignoring unknown media event", "type", event)
	}
}

func (e *Engine) isCurrentLocal(epoch uint64, identity string) bool {
	return e.call.State() == call.Connected &&
		epoch == e.call.Epoch() &&
		identity != "" && identity == e.call.LocalIdentity()
}

// participantLabel names a media participant by their display name in
// the call's room. Media identities are Matrix user IDs; anything else
// is shown as-is.
func (e *Engine) participantLabel(roomID ref.RoomID, identity string) string {
	userID, err := ref.ParseUserID(identity)
	if err != nil {
		return identity
	}
	room, ok := e.directory.Get(roomID)
	if !ok {
		return identity
	}
	if member, ok := room.Member(userID); ok {
		return member.Label()
	}
	return identity
}

func (e *Engine) notifyCall(err error) {
	e.config.Notifier.OnCallStateChanged(e.call.Snapshot(), err)
}
