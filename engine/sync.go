// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/protocol"
)

// handleProtocolEvent applies one event from the sync stream. Before
// the initial sync is prepared, per-room notifications are withheld;
// the prepared transition delivers the whole room list at once.
func (e *Engine) handleProtocolEvent(event protocol.Event) {
	switch event := event.(type) {
	case protocol.SyncStateChanged:
		e.handleSyncState(event)

	case protocol.RoomTimelineAppended:
		created := e.directory.Ensure(event.RoomID)
		message, outcome := e.directory.Append(event.RoomID, event.Message)
		if !e.directory.Prepared() {
			return
		}
		switch outcome {
		case directory.Appended:
			e.config.Notifier.OnTimelineAppended(event.RoomID, message)
			if created || event.RoomID != e.directory.SelectedID() {
				e.notifyRoomList()
			}
		case directory.Confirmed:
			e.forgetSend(message.CorrelationID)
			e.config.Notifier.OnMessageUpdated(event.RoomID, message, nil)
		}

	case protocol.RoomMetadataChanged:
		created := e.directory.Ensure(event.RoomID)
		changed := e.directory.ApplyMetadata(event.RoomID, event.Name, event.Topic)
		if e.directory.Prepared() && (created || changed) {
			e.notifyRoomList()
		}

	case protocol.MembershipChanged:
		created := e.directory.Ensure(event.RoomID)
		membersChanged, listChanged := e.directory.ApplyMembership(event.RoomID, event.Member)
		if !e.directory.Prepared() {
			return
		}
		if membersChanged {
			if room, ok := e.directory.Get(event.RoomID); ok {
				e.config.Notifier.OnMembershipChanged(event.RoomID, room.Members)
			}
		}
		if created || listChanged {
			e.notifyRoomList()
		}

	default:
		e.logger.Warn("ignoring unknown protocol event", "type", event)
	}
}

func (e *Engine) handleSyncState(event protocol.SyncStateChanged) {
	e.self.Synced = true
	e.self.SyncPhase = event.Phase
	e.config.Notifier.OnSyncStateChanged(event.Phase)

	switch event.Phase {
	case protocol.PhasePrepared:
		e.directory.MarkPrepared()
		e.logger.Info("initial sync applied", "rooms", e.directory.Len())
		e.notifyRoomList()

	case protocol.PhaseReconnecting:
		e.logger.Warn("sync interrupted, reconnecting")

	case protocol.PhaseError:
		// The server ended the session (revoked token, deactivated
		// account). Nothing more will arrive on the stream.
		e.logger.Error("sync stopped", "error", event.Err)
		err := event.Err
		if err == nil {
			err = clienterr.New(clienterr.Auth, "sync", "session ended by the server")
		}
		e.sessionLost(err)
	}
}

// handleStreamClosed runs when the protocol event stream closes while
// the loop still reads it. Logout and a PhaseError detach the stream
// first, so a close seen here means the terminal event was lost.
func (e *Engine) handleStreamClosed() {
	e.protocolEvents = nil
	e.logger.Error("sync stream closed without a final state")
	e.sessionLost(clienterr.New(clienterr.Network, "sync", "sync stopped unexpectedly"))
}

// sessionLost tears down a session the engine did not end itself and
// reports err to the presentation layer.
func (e *Engine) sessionLost(err error) {
	if e.self.State != LoggedIn {
		return
	}
	e.endSessionLocally()
	if closeErr := e.config.Protocol.Close(); closeErr != nil {
		e.logger.Warn("closing protocol session", "error", closeErr)
	}
	e.self = Self{State: LoggedOut}
	e.config.Notifier.OnLoginError(err)
	e.notifySelf()
}
