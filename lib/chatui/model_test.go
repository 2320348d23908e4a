// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/engine"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
)

var (
	alice   = ref.MustParseUserID("@alice:local")
	bob     = ref.MustParseUserID("@bob:local")
	general = ref.MustParseRoomID("!general:local")
	random  = ref.MustParseRoomID("!random:local")
)

// fakeClient records calls. Rooms returned by SelectedRoom come from
// selected.
type fakeClient struct {
	mu       sync.Mutex
	calls    []string
	password string
	loginErr error
	sendErr  error
	selected directory.Room
	micOn    bool
}

func (c *fakeClient) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeClient) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeClient) Login(ctx context.Context, request engine.LoginRequest) (engine.Self, error) {
	c.mu.Lock()
	if request.Password != nil {
		c.password = string(request.Password.Bytes())
	}
	c.mu.Unlock()
	c.record("login " + request.HomeserverURL + " " + request.Username)
	return engine.Self{State: engine.LoggedIn, UserID: alice}, c.loginErr
}

func (c *fakeClient) Logout(ctx context.Context) error {
	c.record("logout")
	return nil
}

func (c *fakeClient) SelectRoom(ctx context.Context, roomID ref.RoomID) error {
	c.record("select " + roomID.String())
	return nil
}

func (c *fakeClient) SelectedRoom(ctx context.Context) (directory.Room, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, !c.selected.ID.IsZero(), nil
}

func (c *fakeClient) SendMessage(ctx context.Context, body string) (schema.Message, error) {
	c.record("send " + body)
	return schema.Message{}, c.sendErr
}

func (c *fakeClient) RetryMessage(ctx context.Context, roomID ref.RoomID, correlationID string) (schema.Message, error) {
	c.record("retry " + roomID.String() + " " + correlationID)
	return schema.Message{}, nil
}

func (c *fakeClient) CreateRoom(ctx context.Context, request engine.RoomRequest) (ref.RoomID, error) {
	c.record("create " + request.Name)
	return random, nil
}

func (c *fakeClient) CreateVoiceChannel(ctx context.Context, name string) (ref.RoomID, error) {
	c.record("voice " + name)
	return random, nil
}

func (c *fakeClient) StartDirectMessage(ctx context.Context, user string) (ref.RoomID, error) {
	c.record("dm " + user)
	return random, nil
}

func (c *fakeClient) JoinRoom(ctx context.Context, idOrAlias string) (ref.RoomID, error) {
	c.record("join " + idOrAlias)
	return random, nil
}

func (c *fakeClient) StartCall(ctx context.Context, kind schema.CallKind) (call.Session, error) {
	c.record("call " + kind.String())
	return call.Session{}, nil
}

func (c *fakeClient) EndCall(ctx context.Context) error {
	c.record("hangup")
	return clienterr.New(clienterr.NoActiveCall, "end call", "no call")
}

func (c *fakeClient) ToggleMic(ctx context.Context) (bool, error) {
	c.record("mic")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micOn = !c.micOn
	return c.micOn, nil
}

func (c *fakeClient) ToggleCamera(ctx context.Context) (bool, error) {
	c.record("cam")
	return true, nil
}

func (c *fakeClient) ShareScreen(ctx context.Context) (bool, error) {
	c.record("screen")
	return true, nil
}

// run executes cmd and feeds every resulting message back into model.
// Commands that do not finish promptly (cursor blink, status fades,
// the notification listener) are abandoned.
func run(t *testing.T, model Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return model
	}
	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()
	var message tea.Msg
	select {
	case message = <-result:
	case <-time.After(50 * time.Millisecond):
		return model
	}

	switch message := message.(type) {
	case nil:
		return model
	case tea.BatchMsg:
		for _, inner := range message {
			model = run(t, model, inner)
		}
		return model
	case tea.QuitMsg:
		return model
	default:
		return send(t, model, message)
	}
}

// send delivers message and runs the command it returns.
func send(t *testing.T, model Model, message tea.Msg) Model {
	t.Helper()
	updated, cmd := model.Update(message)
	return run(t, updated.(Model), cmd)
}

func typeText(t *testing.T, model Model, text string) Model {
	t.Helper()
	for _, r := range text {
		if r == ' ' {
			model = send(t, model, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		model = send(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return model
}

func enter(t *testing.T, model Model) Model {
	t.Helper()
	return send(t, model, tea.KeyMsg{Type: tea.KeyEnter})
}

func notify(t *testing.T, model Model, notification engine.Notification) Model {
	t.Helper()
	return send(t, model, NotificationMsg{Notification: notification})
}

func message(id, correlationID string, sender ref.UserID, body string, state schema.DeliveryState) schema.Message {
	return schema.Message{
		ID:            id,
		CorrelationID: correlationID,
		Sender:        sender,
		Body:          body,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		State:         state,
	}
}

func newTestModel(t *testing.T, client *fakeClient) Model {
	t.Helper()
	notifications := make(chan engine.Notification)
	model := NewModel(context.Background(), client, notifications, Options{HomeserverURL: "https://matrix.local"})
	return send(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})
}

// loggedInModel returns a model with a session and general selected.
func loggedInModel(t *testing.T, client *fakeClient) Model {
	t.Helper()
	client.selected = directory.Room{
		ID:     general,
		Name:   "general",
		Loaded: true,
		Members: []schema.Member{
			{UserID: alice, Membership: schema.Joined},
			{UserID: bob, DisplayName: "Bob", Membership: schema.Joined},
		},
		Timeline: []schema.Message{message("$1", "", bob, "hello **there**", schema.Sent)},
	}
	model := newTestModel(t, client)
	model = notify(t, model, engine.SessionChanged{Self: engine.Self{State: engine.LoggedIn, UserID: alice}})
	model = notify(t, model, engine.RoomListChanged{Rooms: []directory.Summary{
		{ID: general, DisplayName: "general", Kind: schema.RoomGroup, Selected: true, Members: 2},
		{ID: random, DisplayName: "random", Kind: schema.RoomGroup, Unread: 3, Members: 2},
	}})
	if model.room.ID != general {
		t.Fatalf("selected room not loaded: %v", model.room.ID)
	}
	return model
}

func screen(model Model) string {
	return ansi.Strip(model.View())
}

func TestLoginFormSubmits(t *testing.T) {
	client := &fakeClient{}
	model := newTestModel(t, client)
	if !strings.Contains(screen(model), "Homeserver") {
		t.Fatalf("login form not shown:\n%s", screen(model))
	}

	model = typeText(t, model, "alice")
	model = enter(t, model) // moves to the password field
	model = typeText(t, model, "hunter2")
	model = enter(t, model)

	calls := client.recorded()
	if len(calls) != 1 || calls[0] != "login https://matrix.local alice" {
		t.Fatalf("calls = %v", calls)
	}
	if client.password != "hunter2" {
		t.Errorf("password = %q", client.password)
	}
	if model.login.fields[fieldPassword].Value() != "" {
		t.Error("password field not cleared after submit")
	}
}

func TestLoginErrorShown(t *testing.T) {
	client := &fakeClient{}
	model := newTestModel(t, client)
	model = notify(t, model, engine.LoginError{Err: clienterr.New(clienterr.Auth, "login", "invalid password")})
	if !strings.Contains(screen(model), "invalid password") {
		t.Errorf("login error not rendered:\n%s", screen(model))
	}
}

func TestChatRendersRoomsAndTimeline(t *testing.T) {
	model := loggedInModel(t, &fakeClient{})
	view := screen(model)
	for _, want := range []string{"# general", "# random", "Bob", "hello there", "◌ syncing"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "**") {
		t.Error("markdown markers should not be rendered")
	}
}

func TestSendMessage(t *testing.T) {
	client := &fakeClient{}
	model := loggedInModel(t, client)
	model = typeText(t, model, "hi bob")
	model = enter(t, model)

	if calls := client.recorded(); calls[len(calls)-1] != "send hi bob" {
		t.Fatalf("calls = %v", calls)
	}
	if model.composer.Value() != "" {
		t.Error("composer not cleared")
	}

	pending := message("dragon-1", "dragon-1", alice, "hi bob", schema.Pending)
	model = notify(t, model, engine.TimelineAppended{RoomID: general, Message: pending})
	if !strings.Contains(screen(model), "sending") {
		t.Errorf("pending marker missing:\n%s", screen(model))
	}

	sent := message("$2", "dragon-1", alice, "hi bob", schema.Sent)
	model = notify(t, model, engine.MessageUpdated{RoomID: general, Message: sent})
	if len(model.room.Timeline) != 2 || model.room.Timeline[1].State != schema.Sent {
		t.Fatalf("timeline = %+v", model.room.Timeline)
	}
	if strings.Contains(screen(model), "sending") {
		t.Error("pending marker still shown after confirmation")
	}
}

func TestDuplicateAppendIgnored(t *testing.T) {
	model := loggedInModel(t, &fakeClient{})
	model = notify(t, model, engine.TimelineAppended{RoomID: general, Message: message("$1", "", bob, "hello **there**", schema.Sent)})
	if len(model.room.Timeline) != 1 {
		t.Errorf("timeline has %d messages, want 1", len(model.room.Timeline))
	}
	model = notify(t, model, engine.TimelineAppended{RoomID: random, Message: message("$9", "", bob, "elsewhere", schema.Sent)})
	if len(model.room.Timeline) != 1 {
		t.Error("message for another room was appended")
	}
}

func TestFailedMessageRetry(t *testing.T) {
	client := &fakeClient{}
	model := loggedInModel(t, client)
	failed := message("dragon-1", "dragon-1", alice, "lost", schema.Failed)
	model = notify(t, model, engine.TimelineAppended{RoomID: general, Message: failed})
	model = notify(t, model, engine.MessageUpdated{RoomID: general, Message: failed, Err: clienterr.New(clienterr.SendTimeout, "send", "no echo")})

	view := screen(model)
	if !strings.Contains(view, "not sent") {
		t.Errorf("failure marker missing:\n%s", view)
	}

	model = send(t, model, tea.KeyMsg{Type: tea.KeyCtrlR})
	calls := client.recorded()
	if calls[len(calls)-1] != "retry !general:local dragon-1" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestSlashCommands(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"/join #dev:local", "join #dev:local"},
		{"/dm bob", "dm bob"},
		{"/create Release planning", "create Release planning"},
		{"/voice lobby", "voice lobby"},
		{"/call", "call voice"},
		{"/video", "call video"},
		{"/mic", "mic"},
		{"/cam", "cam"},
		{"/screen", "screen"},
		{"/logout", "logout"},
		{"//shrug", "send /shrug"},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			client := &fakeClient{}
			model := loggedInModel(t, client)
			model = typeText(t, model, test.line)
			enter(t, model)
			calls := client.recorded()
			if calls[len(calls)-1] != test.want {
				t.Errorf("last call = %q, want %q", calls[len(calls)-1], test.want)
			}
		})
	}
}

func TestCommandErrorShownInStatus(t *testing.T) {
	client := &fakeClient{}
	model := loggedInModel(t, client)
	model = typeText(t, model, "/frobnicate")
	model = enter(t, model)
	if !strings.Contains(model.status, "unknown command") {
		t.Errorf("status = %q", model.status)
	}
	if model.composer.Value() != "/frobnicate" {
		t.Error("composer should keep a rejected command")
	}

	model.composer.Reset()
	model = typeText(t, model, "/hangup")
	model = enter(t, model)
	if !strings.Contains(model.status, "no call") {
		t.Errorf("status = %q, want the EndCall error", model.status)
	}
}

func TestRoomPicker(t *testing.T) {
	client := &fakeClient{}
	model := loggedInModel(t, client)
	model = send(t, model, tea.KeyMsg{Type: tea.KeyCtrlK})
	if model.picker == nil {
		t.Fatal("picker not opened")
	}
	model = typeText(t, model, "rand")
	if !strings.Contains(screen(model), "Switch room") {
		t.Errorf("picker not rendered:\n%s", screen(model))
	}
	model = enter(t, model)
	if model.picker != nil {
		t.Error("picker still open after selection")
	}
	calls := client.recorded()
	if calls[len(calls)-1] != "select !random:local" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestSelectionChangeLoadsRoom(t *testing.T) {
	client := &fakeClient{}
	model := loggedInModel(t, client)
	client.selected = directory.Room{ID: random, Name: "random", Loaded: true}
	model = notify(t, model, engine.RoomListChanged{Rooms: []directory.Summary{
		{ID: general, DisplayName: "general"},
		{ID: random, DisplayName: "random", Selected: true},
	}})
	if model.room.ID != random {
		t.Fatalf("room = %v, want random", model.room.ID)
	}
	if !strings.Contains(screen(model), "No messages yet") {
		t.Errorf("empty room placeholder missing:\n%s", screen(model))
	}
}

func TestNextRoomWraps(t *testing.T) {
	client := &fakeClient{}
	model := loggedInModel(t, client)
	send(t, model, tea.KeyMsg{Type: tea.KeyCtrlN})
	send(t, model, tea.KeyMsg{Type: tea.KeyCtrlP})
	calls := client.recorded()
	if len(calls) < 2 || calls[len(calls)-2] != "select !random:local" || calls[len(calls)-1] != "select !random:local" {
		t.Errorf("calls = %v, want random selected both ways from general", calls)
	}
}

func TestCallBar(t *testing.T) {
	model := loggedInModel(t, &fakeClient{})
	model = notify(t, model, engine.CallStateChanged{Session: call.Session{
		RoomID: general,
		Kind:   schema.CallVideo,
		State:  call.Connected,
		Participants: []call.Participant{
			{Identity: alice.String(), Label: "alice", IsLocal: true, Tracks: []schema.TrackKind{schema.TrackAudio, schema.TrackVideo}},
			{Identity: bob.String(), Label: "Bob", Tracks: []schema.TrackKind{schema.TrackAudio}},
		},
	}})
	view := screen(model)
	for _, want := range []string{"video call connected", "you ♪ ▣", "Bob ♪"} {
		if !strings.Contains(view, want) {
			t.Errorf("call bar missing %q:\n%s", want, view)
		}
	}

	model = notify(t, model, engine.CallStateChanged{Session: call.Session{}, Err: errors.New("media connection lost")})
	if strings.Contains(screen(model), "video call") {
		t.Error("call bar still shown after the call ended")
	}
	if model.status != "media connection lost" {
		t.Errorf("status = %q", model.status)
	}
}

func TestLogoutReturnsToLogin(t *testing.T) {
	model := loggedInModel(t, &fakeClient{})
	model = notify(t, model, engine.SessionChanged{Self: engine.Self{State: engine.LoggedOut}})
	if len(model.rooms) != 0 || !model.room.ID.IsZero() {
		t.Error("room state not cleared")
	}
	if !strings.Contains(screen(model), "Username") {
		t.Errorf("login form not shown:\n%s", screen(model))
	}
}

func TestNotificationsClosedQuits(t *testing.T) {
	model := newTestModel(t, &fakeClient{})
	_, cmd := model.Update(notificationsClosedMsg{})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
