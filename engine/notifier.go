// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/protocol"
)

// Notifier receives state changes from the engine. Methods are called
// on the dispatch goroutine and must not block or call back into the
// engine; implementations hand the value off and return.
type Notifier interface {
	// OnRoomListChanged delivers the full sorted room list after any
	// change visible in it: a new room, a rename, a reclassification,
	// an unread count or the selection.
	OnRoomListChanged(rooms []directory.Summary)

	// OnTimelineAppended delivers a message newly added to a room's
	// timeline, local pending inserts included.
	OnTimelineAppended(roomID ref.RoomID, message schema.Message)

	// OnMessageUpdated delivers a message whose delivery state changed.
	// err explains a transition to failed and is nil otherwise.
	OnMessageUpdated(roomID ref.RoomID, message schema.Message, err error)

	// OnMembershipChanged delivers a room's member list after a change.
	OnMembershipChanged(roomID ref.RoomID, members []schema.Member)

	// OnCallStateChanged delivers the active call after any change. err
	// is set when the change is a failure: a connect that did not
	// complete, a lost media connection, or a local track that could
	// not be toggled.
	OnCallStateChanged(session call.Session, err error)

	// OnLoginError reports a failed login or an ended session.
	OnLoginError(err error)

	// OnSyncStateChanged reports a sync loop phase.
	OnSyncStateChanged(phase protocol.Phase)

	// OnSessionChanged reports login, logout and resume.
	OnSessionChanged(self Self)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) OnRoomListChanged([]directory.Summary)              {}
func (NopNotifier) OnTimelineAppended(ref.RoomID, schema.Message)      {}
func (NopNotifier) OnMessageUpdated(ref.RoomID, schema.Message, error) {}
func (NopNotifier) OnMembershipChanged(ref.RoomID, []schema.Member)    {}
func (NopNotifier) OnCallStateChanged(call.Session, error)             {}
func (NopNotifier) OnLoginError(error)                                 {}
func (NopNotifier) OnSyncStateChanged(protocol.Phase)                  {}
func (NopNotifier) OnSessionChanged(Self)                              {}

// Notification is one queued change from a ChannelNotifier. The
// concrete types mirror the Notifier methods.
type Notification interface {
	notification()
}

type (
	RoomListChanged struct {
		Rooms []directory.Summary
	}
	TimelineAppended struct {
		RoomID  ref.RoomID
		Message schema.Message
	}
	MessageUpdated struct {
		RoomID  ref.RoomID
		Message schema.Message
		Err     error
	}
	MembershipChanged struct {
		RoomID  ref.RoomID
		Members []schema.Member
	}
	CallStateChanged struct {
		Session call.Session
		Err     error
	}
	LoginError struct {
		Err error
	}
	SyncStateChanged struct {
		Phase protocol.Phase
	}
	SessionChanged struct {
		Self Self
	}
)

func (RoomListChanged) notification()   {}
func (TimelineAppended) notification()  {}
func (MessageUpdated) notification()    {}
func (MembershipChanged) notification() {}
func (CallStateChanged) notification()  {}
func (LoginError) notification()        {}
func (SyncStateChanged) notification()  {}
func (SessionChanged) notification()    {}

// ChannelNotifier turns notifications into values on a channel. The
// queue between the engine and the channel is unbounded, so a slow
// reader delays delivery but never stalls the engine. Notifications are
// delivered in the order the engine produced them.
type ChannelNotifier struct {
	out  chan Notification
	wake chan struct{}
	done chan struct{}

	mu     sync.Mutex
	queue  []Notification
	closed bool
}

// NewChannelNotifier starts the delivery goroutine. Call Close to stop
// it.
func NewChannelNotifier() *ChannelNotifier {
	n := &ChannelNotifier{
		out:  make(chan Notification),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.deliver()
	return n
}

// C returns the notification channel. It is closed after Close.
func (n *ChannelNotifier) C() <-chan Notification { return n.out }

// Close stops delivery and discards anything still queued.
func (n *ChannelNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	close(n.done)
}

func (n *ChannelNotifier) push(notification Notification) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, notification)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *ChannelNotifier) deliver() {
	defer close(n.out)
	for {
		n.mu.Lock()
		var next Notification
		if len(n.queue) > 0 {
			next = n.queue[0]
			n.queue[0] = nil
			n.queue = n.queue[1:]
		}
		n.mu.Unlock()

		if next == nil {
			select {
			case <-n.wake:
				continue
			case <-n.done:
				return
			}
		}

		select {
		case n.out <- next:
		case <-n.done:
			return
		}
	}
}

func (n *ChannelNotifier) OnRoomListChanged(rooms []directory.Summary) {
	n.push(RoomListChanged{Rooms: rooms})
}

func (n *ChannelNotifier) OnTimelineAppended(roomID ref.RoomID, message schema.Message) {
	n.push(TimelineAppended{RoomID: roomID, Message: message})
}

func (n *ChannelNotifier) OnMessageUpdated(roomID ref.RoomID, message schema.Message, err error) {
	n.push(MessageUpdated{RoomID: roomID, Message: message, Err: err})
}

func (n *ChannelNotifier) OnMembershipChanged(roomID ref.RoomID, members []schema.Member) {
	n.push(MembershipChanged{RoomID: roomID, Members: members})
}

func (n *ChannelNotifier) OnCallStateChanged(session call.Session, err error) {
	n.push(CallStateChanged{Session: session, Err: err})
}

func (n *ChannelNotifier) OnLoginError(err error) { n.push(LoginError{Err: err}) }

func (n *ChannelNotifier) OnSyncStateChanged(phase protocol.Phase) {
	n.push(SyncStateChanged{Phase: phase})
}

func (n *ChannelNotifier) OnSessionChanged(self Self) { n.push(SessionChanged{Self: self}) }
