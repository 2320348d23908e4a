// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dragon-chat/dragon/engine"
	"github.com/dragon-chat/dragon/lib/secret"
)

const (
	fieldHomeserver = iota
	fieldUsername
	fieldPassword
	fieldCount
)

var fieldLabels = [fieldCount]string{"Homeserver", "Username", "Password"}

// loginForm collects credentials while no session exists.
type loginForm struct {
	fields [fieldCount]textinput.Model
	focus  int
	busy   bool
	err    error
}

func newLoginForm(homeserver string) loginForm {
	var form loginForm
	for index := range form.fields {
		field := textinput.New()
		field.Prompt = ""
		field.CharLimit = 256
		field.Width = 36
		form.fields[index] = field
	}
	form.fields[fieldHomeserver].Placeholder = "https://matrix.example.org"
	form.fields[fieldHomeserver].SetValue(homeserver)
	form.fields[fieldUsername].Placeholder = "alice"
	form.fields[fieldPassword].EchoMode = textinput.EchoPassword
	form.fields[fieldPassword].EchoCharacter = '•'

	form.focus = fieldUsername
	if homeserver == "" {
		form.focus = fieldHomeserver
	}
	form.fields[form.focus].Focus()
	return form
}

func (form *loginForm) setFocus(index int) tea.Cmd {
	form.fields[form.focus].Blur()
	form.focus = (index + fieldCount) % fieldCount
	return form.fields[form.focus].Focus()
}

// request builds the login request. The password buffer belongs to the
// caller.
func (form *loginForm) request() (engine.LoginRequest, error) {
	request := engine.LoginRequest{
		HomeserverURL: strings.TrimSpace(form.fields[fieldHomeserver].Value()),
		Username:      strings.TrimSpace(form.fields[fieldUsername].Value()),
	}
	if password := form.fields[fieldPassword].Value(); password != "" {
		buffer, err := secret.NewFromString(password)
		if err != nil {
			return engine.LoginRequest{}, err
		}
		request.Password = buffer
	}
	return request, nil
}

func (model Model) handleLoginKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	form := &model.login
	switch {
	case key.Matches(message, model.keys.NextField):
		cmd := form.setFocus(form.focus + 1)
		return model, cmd

	case key.Matches(message, model.keys.PreviousField):
		cmd := form.setFocus(form.focus - 1)
		return model, cmd

	case key.Matches(message, model.keys.Send):
		if form.busy {
			return model, nil
		}
		if form.focus != fieldPassword && form.fields[fieldPassword].Value() == "" {
			cmd := form.setFocus(form.focus + 1)
			return model, cmd
		}
		request, err := form.request()
		form.fields[fieldPassword].Reset()
		if err != nil {
			form.err = err
			return model, nil
		}
		form.busy = true
		form.err = nil
		return model, model.loginCmd(request)
	}

	var cmd tea.Cmd
	form.fields[form.focus], cmd = form.fields[form.focus].Update(message)
	return model, cmd
}

type loginDoneMsg struct {
	self engine.Self
	err  error
}

func (model Model) loginCmd(request engine.LoginRequest) tea.Cmd {
	client, ctx := model.client, model.ctx
	return func() tea.Msg {
		if request.Password != nil {
			defer request.Password.Close()
		}
		self, err := client.Login(ctx, request)
		return loginDoneMsg{self: self, err: err}
	}
}

func (model Model) renderLogin() string {
	theme := model.theme
	form := model.login
	label := lipgloss.NewStyle().Foreground(theme.FaintText).Width(12)
	focused := lipgloss.NewStyle().Foreground(theme.AccentColor).Bold(true).Width(12)

	lines := []string{
		lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true).Render("Dragon"),
		"",
	}
	for index := range form.fields {
		style := label
		if index == form.focus {
			style = focused
		}
		lines = append(lines, style.Render(fieldLabels[index])+form.fields[index].View())
	}
	lines = append(lines, "")

	switch {
	case form.busy || model.self.State == engine.LoggingIn:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.CallConnecting).Render("Signing in…"))
	case form.err != nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ErrorText).Width(48).Render(form.err.Error()))
	default:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.HelpText).Render("tab next field · enter sign in · C-c quit"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Padding(1, 3).
		Render(strings.Join(lines, "\n"))
	return lipgloss.Place(model.width, model.height, lipgloss.Center, lipgloss.Center, box)
}
