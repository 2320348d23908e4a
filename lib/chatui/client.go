// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/engine"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
)

// Client is the command surface of the engine that the UI drives.
type Client interface {
	Login(ctx context.Context, request engine.LoginRequest) (engine.Self, error)
	Logout(ctx context.Context) error

	SelectRoom(ctx context.Context, roomID ref.RoomID) error
	SelectedRoom(ctx context.Context) (directory.Room, bool, error)
	SendMessage(ctx context.Context, body string) (schema.Message, error)
	RetryMessage(ctx context.Context, roomID ref.RoomID, correlationID string) (schema.Message, error)

	CreateRoom(ctx context.Context, request engine.RoomRequest) (ref.RoomID, error)
	CreateVoiceChannel(ctx context.Context, name string) (ref.RoomID, error)
	StartDirectMessage(ctx context.Context, user string) (ref.RoomID, error)
	JoinRoom(ctx context.Context, idOrAlias string) (ref.RoomID, error)

	StartCall(ctx context.Context, kind schema.CallKind) (call.Session, error)
	EndCall(ctx context.Context) error
	ToggleMic(ctx context.Context) (bool, error)
	ToggleCamera(ctx context.Context) (bool, error)
	ShareScreen(ctx context.Context) (bool, error)
}

var _ Client = (*engine.Engine)(nil)

// NotificationMsg delivers one engine notification to the model.
type NotificationMsg struct {
	engine.Notification
}

// notificationsClosedMsg reports that the engine stopped.
type notificationsClosedMsg struct{}

// Listen returns a command that waits for the next notification. The
// model re-arms it after every delivery.
func Listen(notifications <-chan engine.Notification) tea.Cmd {
	return func() tea.Msg {
		notification, ok := <-notifications
		if !ok {
			return notificationsClosedMsg{}
		}
		return NotificationMsg{Notification: notification}
	}
}
