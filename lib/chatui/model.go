// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/engine"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/lib/tui"
	"github.com/dragon-chat/dragon/protocol"
)

// DefaultTimelineBacklog bounds the model's copy of the selected room's
// timeline when Options.Backlog is zero.
const DefaultTimelineBacklog = 500

// Options configures a Model. Zero values select defaults.
type Options struct {
	// HomeserverURL prefills the login form.
	HomeserverURL string
	// Backlog bounds the timeline kept for the selected room.
	Backlog int
	Theme   *tui.Theme
	Keys    *KeyMap
}

// Model is the bubbletea model of the chat client.
type Model struct {
	ctx           context.Context
	client        Client
	notifications <-chan engine.Notification
	theme         tui.Theme
	keys          KeyMap
	backlog       int

	width  int
	height int

	self  engine.Self
	login loginForm

	rooms []directory.Summary
	// room is the selected room's copy, kept current from timeline
	// and membership notifications. Zero until the first load.
	room        directory.Room
	loadingRoom ref.RoomID

	timeline viewport.Model
	composer textinput.Model

	session call.Session

	picker   *tui.Picker
	showHelp bool

	status      string
	statusLevel slog.Level
	statusSeq   int
}

// NewModel creates a model driving client. notifications is the
// engine's notification channel (ChannelNotifier.C).
func NewModel(ctx context.Context, client Client, notifications <-chan engine.Notification, options Options) Model {
	theme := tui.DefaultTheme
	if options.Theme != nil {
		theme = *options.Theme
	}
	keys := DefaultKeyMap
	if options.Keys != nil {
		keys = *options.Keys
	}
	backlog := options.Backlog
	if backlog <= 0 {
		backlog = DefaultTimelineBacklog
	}

	composer := textinput.New()
	composer.Prompt = "> "
	composer.Placeholder = "Message, or /help"
	composer.CharLimit = 0
	composer.Focus()

	return Model{
		ctx:           ctx,
		client:        client,
		notifications: notifications,
		theme:         theme,
		keys:          keys,
		backlog:       backlog,
		login:         newLoginForm(options.HomeserverURL),
		timeline:      viewport.New(0, 0),
		composer:      composer,
	}
}

func (model Model) Init() tea.Cmd {
	return tea.Batch(Listen(model.notifications), textinput.Blink)
}

func (model Model) loggedIn() bool {
	return model.self.State == engine.LoggedIn || model.self.State == engine.LoggingOut
}

// Update handles one message.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.layout()
		return model, nil

	case tea.KeyMsg:
		if key.Matches(message, model.keys.Quit) {
			return model, tea.Quit
		}
		if model.picker != nil {
			return model.handlePickerKeys(message)
		}
		if model.showHelp {
			if key.Matches(message, model.keys.Cancel, model.keys.Help) {
				model.showHelp = false
			}
			return model, nil
		}
		if !model.loggedIn() {
			return model.handleLoginKeys(message)
		}
		return model.handleChatKeys(message)

	case NotificationMsg:
		cmd := model.handleNotification(message.Notification)
		return model, tea.Batch(cmd, Listen(model.notifications))

	case notificationsClosedMsg:
		return model, tea.Quit

	case loginDoneMsg:
		model.login.busy = false
		if message.err != nil {
			model.login.err = message.err
		}
		return model, nil

	case roomLoadedMsg:
		return model.handleRoomLoaded(message)

	case actionDoneMsg:
		if message.err != nil {
			cmd := model.setStatus(message.err.Error(), slog.LevelError)
			return model, cmd
		}
		if message.note != "" {
			cmd := model.setStatus(message.note, slog.LevelInfo)
			return model, cmd
		}
		return model, nil

	case tui.LogRecordMsg:
		cmd := model.setStatus(message.Summary, message.Level)
		return model, cmd

	case tui.LogFadeMsg:
		if message.Seq == model.statusSeq {
			model.status = ""
		}
		return model, nil
	}

	// Cursor blink and other component messages.
	var cmd tea.Cmd
	if model.loggedIn() {
		model.composer, cmd = model.composer.Update(message)
	} else {
		focus := model.login.focus
		model.login.fields[focus], cmd = model.login.fields[focus].Update(message)
	}
	return model, cmd
}

// setStatus shows text in the status line until the fade for this
// message fires.
func (model *Model) setStatus(text string, level slog.Level) tea.Cmd {
	model.statusSeq++
	model.status = text
	model.statusLevel = level
	return tui.FadeLog(model.statusSeq)
}

func (model Model) handleChatKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Send):
		return model.submit()

	case key.Matches(message, model.keys.PreviousRoom):
		return model, model.stepRoom(-1)

	case key.Matches(message, model.keys.NextRoom):
		return model, model.stepRoom(1)

	case key.Matches(message, model.keys.PickRoom):
		model.openPicker()
		return model, nil

	case key.Matches(message, model.keys.PageUp):
		model.timeline.HalfViewUp()
		return model, nil

	case key.Matches(message, model.keys.PageDown):
		model.timeline.HalfViewDown()
		return model, nil

	case key.Matches(message, model.keys.Retry):
		cmd := model.retryLatest()
		return model, cmd

	case key.Matches(message, model.keys.ToggleMic):
		return model, model.runCommand(input{Command: "mic"})

	case key.Matches(message, model.keys.HangUp):
		return model, model.runCommand(input{Command: "hangup"})

	case key.Matches(message, model.keys.Help):
		model.showHelp = true
		return model, nil

	case key.Matches(message, model.keys.Cancel):
		model.composer.Reset()
		return model, nil
	}

	var cmd tea.Cmd
	model.composer, cmd = model.composer.Update(message)
	return model, cmd
}

// submit sends the composer line as a message or runs it as a command.
func (model Model) submit() (tea.Model, tea.Cmd) {
	raw := model.composer.Value()
	if strings.TrimSpace(raw) == "" {
		return model, nil
	}
	parsed, err := parseInput(raw)
	if err != nil {
		cmd := model.setStatus(err.Error(), slog.LevelError)
		return model, cmd
	}
	model.composer.Reset()

	switch parsed.Command {
	case "":
		client, ctx, body := model.client, model.ctx, parsed.Body
		return model, func() tea.Msg {
			_, err := client.SendMessage(ctx, body)
			return actionDoneMsg{err: err}
		}
	case "rooms":
		model.openPicker()
		return model, nil
	case "help":
		model.showHelp = true
		return model, nil
	case "retry":
		cmd := model.retryLatest()
		return model, cmd
	case "quit":
		return model, tea.Quit
	}
	return model, model.runCommand(parsed)
}

// actionDoneMsg reports the outcome of an engine command. note, if set,
// is shown on success.
type actionDoneMsg struct {
	note string
	err  error
}

// runCommand runs a slash command that talks to the engine.
func (model Model) runCommand(command input) tea.Cmd {
	client, ctx, arg := model.client, model.ctx, command.Arg
	run := func(action func() (string, error)) tea.Cmd {
		return func() tea.Msg {
			note, err := action()
			return actionDoneMsg{note: note, err: err}
		}
	}
	opened := func(verb string, open func() (ref.RoomID, error)) tea.Cmd {
		return run(func() (string, error) {
			roomID, err := open()
			if err != nil {
				return "", err
			}
			return verb + " " + roomID.String(), nil
		})
	}
	toggled := func(what string, toggle func(context.Context) (bool, error)) tea.Cmd {
		return run(func() (string, error) {
			enabled, err := toggle(ctx)
			if err != nil {
				return "", err
			}
			if enabled {
				return what + " on", nil
			}
			return what + " off", nil
		})
	}

	switch command.Command {
	case "join":
		return opened("joined", func() (ref.RoomID, error) { return client.JoinRoom(ctx, arg) })
	case "dm":
		return opened("opened", func() (ref.RoomID, error) { return client.StartDirectMessage(ctx, arg) })
	case "create":
		return opened("created", func() (ref.RoomID, error) {
			return client.CreateRoom(ctx, engine.RoomRequest{Name: arg})
		})
	case "voice":
		return opened("created", func() (ref.RoomID, error) { return client.CreateVoiceChannel(ctx, arg) })
	case "call", "video":
		kind := schema.CallVoice
		if command.Command == "video" {
			kind = schema.CallVideo
		}
		return run(func() (string, error) {
			if _, err := client.StartCall(ctx, kind); err != nil {
				return "", err
			}
			return kind.String() + " call connected", nil
		})
	case "hangup":
		return run(func() (string, error) { return "call ended", client.EndCall(ctx) })
	case "mic":
		return toggled("microphone", client.ToggleMic)
	case "cam":
		return toggled("camera", client.ToggleCamera)
	case "screen":
		return toggled("screen sharing", client.ShareScreen)
	case "logout":
		return run(func() (string, error) { return "signed out", client.Logout(ctx) })
	}
	return nil
}

// retryLatest resends the newest failed message in the selected room.
func (model *Model) retryLatest() tea.Cmd {
	for index := len(model.room.Timeline) - 1; index >= 0; index-- {
		message := model.room.Timeline[index]
		if message.State != schema.Failed || message.CorrelationID == "" {
			continue
		}
		client, ctx, roomID := model.client, model.ctx, model.room.ID
		return func() tea.Msg {
			_, err := client.RetryMessage(ctx, roomID, message.CorrelationID)
			return actionDoneMsg{err: err}
		}
	}
	return model.setStatus("nothing to retry", slog.LevelInfo)
}

// selectRoom asks the engine to select roomID. The timeline loads when
// the resulting room list notification arrives.
func (model Model) selectRoom(roomID ref.RoomID) tea.Cmd {
	client, ctx := model.client, model.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: client.SelectRoom(ctx, roomID)}
	}
}

// stepRoom selects the room delta rows away from the selected one.
func (model Model) stepRoom(delta int) tea.Cmd {
	if len(model.rooms) == 0 {
		return nil
	}
	current := slices.IndexFunc(model.rooms, func(summary directory.Summary) bool { return summary.Selected })
	next := 0
	if current >= 0 {
		next = (current + delta + len(model.rooms)) % len(model.rooms)
	}
	return model.selectRoom(model.rooms[next].ID)
}

func (model *Model) openPicker() {
	candidates := make([]tui.Candidate, 0, len(model.rooms))
	for _, summary := range model.rooms {
		candidates = append(candidates, tui.Candidate{
			Label: roomIcon(summary.Kind) + " " + summary.DisplayName,
			Value: summary.ID.String(),
		})
	}
	model.picker = tui.NewPicker("Switch room", candidates)
}

func (model Model) handlePickerKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel):
		model.picker = nil
	case key.Matches(message, model.keys.Send):
		selected, ok := model.picker.Selected()
		model.picker = nil
		if !ok {
			return model, nil
		}
		roomID, err := ref.ParseRoomID(selected.Value)
		if err != nil {
			cmd := model.setStatus(err.Error(), slog.LevelError)
			return model, cmd
		}
		return model, model.selectRoom(roomID)
	case key.Matches(message, model.keys.PickerUp):
		model.picker.MoveUp()
	case key.Matches(message, model.keys.PickerDown):
		model.picker.MoveDown()
	case message.Type == tea.KeyBackspace:
		model.picker.Backspace()
	case message.Type == tea.KeySpace:
		model.picker.Type([]rune{' '})
	case message.Type == tea.KeyRunes:
		model.picker.Type(message.Runes)
	}
	return model, nil
}

// handleNotification applies one engine notification.
func (model *Model) handleNotification(notification engine.Notification) tea.Cmd {
	switch notification := notification.(type) {
	case engine.SessionChanged:
		model.self = notification.Self
		switch notification.Self.State {
		case engine.LoggedOut:
			model.rooms = nil
			model.room = directory.Room{}
			model.loadingRoom = ref.RoomID{}
			model.session = call.Session{}
			model.picker = nil
			model.composer.Reset()
			model.renderTimeline(false)
			return model.login.setFocus(model.login.focus)
		case engine.LoggedIn:
			model.login.busy = false
			model.login.err = nil
			return model.composer.Focus()
		}

	case engine.LoginError:
		model.login.busy = false
		model.login.err = notification.Err

	case engine.SyncStateChanged:
		model.self.Synced = true
		model.self.SyncPhase = notification.Phase
		if notification.Phase == protocol.PhaseReconnecting {
			return model.setStatus("connection lost, reconnecting", slog.LevelWarn)
		}

	case engine.RoomListChanged:
		model.rooms = notification.Rooms
		return model.loadSelectedIfChanged()

	case engine.TimelineAppended:
		if notification.RoomID == model.room.ID {
			model.appendMessage(notification.Message)
		}

	case engine.MessageUpdated:
		if notification.RoomID == model.room.ID {
			model.replaceMessage(notification.Message)
		}
		if notification.Err != nil {
			return model.setStatus(fmt.Sprintf("message not sent: %v (C-r to retry)", notification.Err), slog.LevelError)
		}

	case engine.MembershipChanged:
		if notification.RoomID == model.room.ID {
			model.room.Members = notification.Members
			model.renderTimeline(false)
		}

	case engine.CallStateChanged:
		model.session = notification.Session
		model.layout()
		if notification.Err != nil {
			return model.setStatus(notification.Err.Error(), slog.LevelError)
		}
	}
	return nil
}

type roomLoadedMsg struct {
	room directory.Room
	ok   bool
	err  error
}

// loadSelectedIfChanged fetches the selected room when the room list
// names a different selection than the one shown.
func (model *Model) loadSelectedIfChanged() tea.Cmd {
	index := slices.IndexFunc(model.rooms, func(summary directory.Summary) bool { return summary.Selected })
	if index < 0 || model.rooms[index].ID == model.room.ID || model.rooms[index].ID == model.loadingRoom {
		return nil
	}
	model.loadingRoom = model.rooms[index].ID
	client, ctx := model.client, model.ctx
	return func() tea.Msg {
		room, ok, err := client.SelectedRoom(ctx)
		return roomLoadedMsg{room: room, ok: ok, err: err}
	}
}

func (model Model) handleRoomLoaded(message roomLoadedMsg) (tea.Model, tea.Cmd) {
	if message.err != nil {
		model.loadingRoom = ref.RoomID{}
		cmd := model.setStatus(message.err.Error(), slog.LevelError)
		return model, cmd
	}
	if message.ok && message.room.ID != model.loadingRoom {
		// Superseded by a later selection.
		return model, nil
	}
	model.loadingRoom = ref.RoomID{}
	if !message.ok {
		return model, nil
	}
	model.room = message.room
	model.room.Timeline = directory.Trim(model.room.Timeline, model.backlog)
	model.renderTimeline(true)
	return model, nil
}

// appendMessage adds a message to the shown timeline. A notification
// can repeat a message already contained in a freshly loaded snapshot,
// so duplicates are dropped.
func (model *Model) appendMessage(message schema.Message) {
	if model.indexOf(message) >= 0 {
		return
	}
	follow := model.timeline.AtBottom()
	model.room.Timeline = directory.Trim(append(model.room.Timeline, message), model.backlog)
	model.renderTimeline(follow)
}

func (model *Model) replaceMessage(message schema.Message) {
	index := model.indexOf(message)
	if index < 0 {
		return
	}
	model.room.Timeline[index] = message
	model.renderTimeline(false)
}

func (model *Model) indexOf(message schema.Message) int {
	return slices.IndexFunc(model.room.Timeline, func(existing schema.Message) bool {
		if message.CorrelationID != "" && existing.CorrelationID == message.CorrelationID {
			return true
		}
		return message.ID != "" && existing.ID == message.ID
	})
}
