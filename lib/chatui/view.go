// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/lib/tui"
	"github.com/dragon-chat/dragon/protocol"
)

// groupGap is the pause after which consecutive messages from the same
// sender get a fresh header.
const groupGap = 5 * time.Minute

func roomIcon(kind schema.RoomKind) string {
	switch kind {
	case schema.RoomDirect:
		return "@"
	case schema.RoomVoice:
		return "◖"
	default:
		return "#"
	}
}

func trackIcon(kind schema.TrackKind) string {
	switch kind {
	case schema.TrackAudio:
		return "♪"
	case schema.TrackVideo:
		return "▣"
	case schema.TrackScreen:
		return "⧉"
	default:
		return "?"
	}
}

func (model Model) sidebarWidth() int {
	return min(max(model.width/4, 16), 28)
}

func (model Model) mainWidth() int {
	return max(model.width-model.sidebarWidth()-1, 10)
}

// layout sizes the timeline and composer from the window size.
func (model *Model) layout() {
	if model.width == 0 || model.height == 0 {
		return
	}
	chrome := 3 // header, composer, status line
	if model.session.Active() {
		chrome++
	}
	follow := model.timeline.AtBottom()
	model.timeline.Width = max(model.mainWidth()-1, 1)
	model.timeline.Height = max(model.height-chrome, 1)
	model.composer.Width = max(model.mainWidth()-3, 1)
	model.renderTimeline(follow)
}

func (model *Model) selectedSummary() (directory.Summary, bool) {
	for _, summary := range model.rooms {
		if summary.Selected {
			return summary, true
		}
	}
	return directory.Summary{}, false
}

func (model *Model) senderLabel(userID ref.UserID) string {
	if member, ok := model.room.Member(userID); ok {
		return member.Label()
	}
	if localpart := userID.Localpart(); localpart != "" {
		return localpart
	}
	return userID.String()
}

// renderTimeline rebuilds the timeline content. follow keeps the view
// pinned to the newest message.
func (model *Model) renderTimeline(follow bool) {
	width := model.timeline.Width
	if width <= 0 {
		return
	}
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	if len(model.room.Timeline) == 0 {
		placeholder := "Select a room with C-k, or /join one."
		if !model.room.ID.IsZero() {
			placeholder = "No messages yet."
		}
		model.timeline.SetContent(faint.Render(placeholder))
		return
	}

	var lines []string
	var previous schema.Message
	for index, message := range model.room.Timeline {
		if index == 0 || message.Sender != previous.Sender || message.Timestamp.Sub(previous.Timestamp) > groupGap {
			if index > 0 {
				lines = append(lines, "")
			}
			sender := lipgloss.NewStyle().Foreground(model.theme.SenderColor(message.Sender.String())).Bold(true)
			lines = append(lines, sender.Render(model.senderLabel(message.Sender))+"  "+
				faint.Render(message.Timestamp.Local().Format("15:04")))
		}
		lines = append(lines, model.renderMessage(message, width)...)
		previous = message
	}
	model.timeline.SetContent(strings.Join(lines, "\n"))
	if follow {
		model.timeline.GotoBottom()
	}
}

func (model *Model) renderMessage(message schema.Message, width int) []string {
	foreground := model.theme.NormalText
	if message.State == schema.Pending {
		foreground = model.theme.PendingText
	}
	var lines []string
	if body := renderBody(message.Body, model.theme, width-2, foreground); body != "" {
		for _, line := range strings.Split(body, "\n") {
			lines = append(lines, "  "+line)
		}
	}
	switch message.State {
	case schema.Pending:
		lines = append(lines, "  "+lipgloss.NewStyle().Foreground(model.theme.PendingText).Render("⋯ sending"))
	case schema.Failed:
		lines = append(lines, "  "+lipgloss.NewStyle().Foreground(model.theme.FailedText).Render("✗ not sent (C-r to retry)"))
	}
	return lines
}

// View renders the whole screen.
func (model Model) View() string {
	if model.width == 0 || model.height == 0 {
		return ""
	}
	var view string
	if model.loggedIn() {
		view = model.renderChat()
	} else {
		view = model.renderLogin()
	}
	if model.picker != nil {
		lines := model.picker.Render(model.theme, min(48, model.width-4), min(10, max(model.height-6, 1)))
		view = tui.CenterOverlay(view, lines, model.width, model.height)
	}
	if model.showHelp {
		view = tui.CenterOverlay(view, model.renderHelp(), model.width, model.height)
	}
	return view
}

func (model Model) renderChat() string {
	bodyHeight := model.height - 1
	mainWidth := model.mainWidth()

	sections := []string{model.renderHeader(mainWidth)}
	scrollbar := tui.Scrollbar{
		Height:  model.timeline.Height,
		Total:   model.timeline.TotalLineCount(),
		Visible: model.timeline.Height,
		Offset:  model.timeline.YOffset,
		Focused: true,
	}
	timeline := lipgloss.NewStyle().Width(model.timeline.Width).Height(model.timeline.Height).Render(model.timeline.View())
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, timeline, scrollbar.Render(model.theme)))
	if model.session.Active() {
		sections = append(sections, model.renderCallBar(mainWidth))
	}
	sections = append(sections, model.composer.View())
	main := lipgloss.NewStyle().Width(mainWidth).Height(bodyHeight).MaxHeight(bodyHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))

	divider := lipgloss.NewStyle().Foreground(model.theme.BorderColor).
		Render(strings.TrimSuffix(strings.Repeat("│\n", bodyHeight), "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, model.renderRooms(bodyHeight), divider, main)
	return lipgloss.JoinVertical(lipgloss.Left, body, model.renderStatus())
}

func (model Model) renderRooms(height int) string {
	width := model.sidebarWidth()
	theme := model.theme
	title := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true).Width(width).Render(" Rooms")
	lines := []string{title}

	visible := max(height-1, 0)
	offset := 0
	for index, summary := range model.rooms {
		if summary.Selected && index >= visible {
			offset = index - visible + 1
		}
	}

	for index := offset; index < len(model.rooms) && len(lines) <= visible; index++ {
		summary := model.rooms[index]
		style := lipgloss.NewStyle().Foreground(theme.NormalText)
		if summary.Kind == schema.RoomVoice {
			style = style.Foreground(theme.VoiceRoom)
		}
		if summary.Selected {
			style = style.Background(theme.SelectedBackground).Foreground(theme.SelectedForeground).Bold(true)
		}

		badge := ""
		if summary.Unread > 0 {
			badge = fmt.Sprintf(" %d", summary.Unread)
		}
		if model.session.Active() && summary.ID == model.session.RoomID {
			badge = " ☎" + badge
		}
		label := ansi.Truncate(" "+roomIcon(summary.Kind)+" "+summary.DisplayName, width-ansi.StringWidth(badge), "…")
		fill := strings.Repeat(" ", max(width-ansi.StringWidth(label)-ansi.StringWidth(badge), 0))
		line := style.Render(label + fill)
		if badge != "" {
			line += style.Foreground(theme.UnreadBadge).Render(badge)
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(strings.Join(lines, "\n"))
}

func (model Model) renderHeader(width int) string {
	theme := model.theme
	summary, ok := model.selectedSummary()
	if !ok {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Width(width).Render(" No room selected")
	}
	header := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true).
		Render(" " + roomIcon(summary.Kind) + " " + summary.DisplayName)
	detail := fmt.Sprintf("  %d members", summary.Members)
	if summary.Topic != "" {
		detail += " · " + summary.Topic
	}
	line := header + lipgloss.NewStyle().Foreground(theme.FaintText).Render(detail)
	return ansi.Truncate(line, width, "…")
}

func (model Model) renderCallBar(width int) string {
	theme := model.theme
	session := model.session
	color := theme.CallConnecting
	if session.State == call.Connected {
		color = theme.CallConnected
	}

	roomName := session.RoomID.String()
	for _, summary := range model.rooms {
		if summary.ID == session.RoomID {
			roomName = summary.DisplayName
		}
	}
	parts := []string{
		lipgloss.NewStyle().Foreground(color).Bold(true).Render("☎ " + session.Kind.String() + " call " + session.State.String()),
		roomName,
	}
	for _, participant := range session.Participants {
		label := participant.Label
		if participant.IsLocal {
			label = "you"
		}
		for _, kind := range participant.Tracks {
			label += " " + trackIcon(kind)
		}
		parts = append(parts, label)
	}
	return ansi.Truncate(" "+strings.Join(parts, " · "), width, "…")
}

func (model Model) syncIndicator() string {
	theme := model.theme
	if !model.self.Synced {
		return lipgloss.NewStyle().Foreground(theme.CallConnecting).Render("◌ syncing")
	}
	switch model.self.SyncPhase {
	case protocol.PhasePrepared, protocol.PhaseSyncing:
		return lipgloss.NewStyle().Foreground(theme.CallConnected).Render("● online")
	case protocol.PhaseReconnecting:
		return lipgloss.NewStyle().Foreground(theme.WarningText).Render("◌ reconnecting")
	default:
		return lipgloss.NewStyle().Foreground(theme.ErrorText).Render("✗ " + model.self.SyncPhase.String())
	}
}

func (model Model) renderStatus() string {
	theme := model.theme
	left := " " + model.self.UserID.String() + "  " + model.syncIndicator()

	var right string
	switch {
	case model.status != "" && model.statusLevel >= slog.LevelError:
		right = lipgloss.NewStyle().Foreground(theme.ErrorText).Render(model.status)
	case model.status != "" && model.statusLevel >= slog.LevelWarn:
		right = lipgloss.NewStyle().Foreground(theme.WarningText).Render(model.status)
	case model.status != "":
		right = lipgloss.NewStyle().Foreground(theme.NormalText).Render(model.status)
	default:
		var hints []string
		for _, binding := range model.keys.ShortHelp() {
			hints = append(hints, binding.Help().Key+" "+binding.Help().Desc)
		}
		right = lipgloss.NewStyle().Foreground(theme.HelpText).Render(strings.Join(hints, " · "))
	}

	room := max(model.width-ansi.StringWidth(left)-1, 0)
	right = ansi.Truncate(right, room, "…")
	gap := strings.Repeat(" ", max(model.width-ansi.StringWidth(left)-ansi.StringWidth(right)-1, 1))
	return left + gap + right + " "
}

func (model Model) renderHelp() []string {
	theme := model.theme
	heading := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(theme.AccentColor).Width(12)

	lines := []string{heading.Render("Keys")}
	for _, binding := range []struct{ keys, what string }{
		{"enter", "send message or command"},
		{"C-k", "switch room"},
		{"C-p / C-n", "previous / next room"},
		{"pgup/pgdn", "scroll timeline"},
		{"C-r", "retry the newest failed message"},
		{"C-t", "toggle microphone"},
		{"C-x", "hang up"},
		{"esc", "clear composer / close"},
		{"C-c", "quit"},
	} {
		lines = append(lines, keyStyle.Render(binding.keys)+binding.what)
	}
	lines = append(lines, "", heading.Render("Commands"))
	for _, spec := range commands {
		usage := "/" + spec.Name
		if spec.Arg != "" {
			usage += " " + spec.Arg
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.AccentColor).Width(26).Render(usage)+spec.Summary)
	}
	box := lipgloss.NewStyle().
		Background(theme.TooltipBackground).
		Foreground(theme.TooltipForeground).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
	return strings.Split(box, "\n")
}
