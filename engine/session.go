// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strings"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/secret"
	"github.com/dragon-chat/dragon/lib/settings"
	"github.com/dragon-chat/dragon/protocol"
)

// LoginRequest is a password login.
type LoginRequest struct {
	// HomeserverURL overrides the stored or configured homeserver. It
	// is persisted on success.
	HomeserverURL string
	Username      string
	// Password is copied; the caller keeps ownership and may close it
	// once Login returns.
	Password *secret.Buffer
}

// Login authenticates with a password, persists the session, and starts
// syncing. Fails with ErrAlreadyLoggedIn unless logged out. An Auth
// failure is also reported through OnLoginError.
func (e *Engine) Login(ctx context.Context, request LoginRequest) (Self, error) {
	username := strings.TrimSpace(request.Username)
	if username == "" {
		return Self{}, clienterr.New(clienterr.Validation, "login", "username is required")
	}
	if request.Password == nil || request.Password.Len() == 0 {
		return Self{}, clienterr.New(clienterr.Validation, "login", "password is required")
	}
	password, err := secret.New(request.Password.Len())
	if err != nil {
		return Self{}, clienterr.Wrap(clienterr.Validation, "login", err)
	}
	copy(password.Bytes(), request.Password.Bytes())

	return submit(ctx, e, func(resolve func(Self, error)) {
		if e.self.State != LoggedOut {
			password.Close()
			resolve(Self{}, clienterr.ErrAlreadyLoggedIn)
			return
		}
		serverURL := request.HomeserverURL
		if serverURL == "" {
			serverURL = e.homeserverURL()
		}
		e.startSession(ctx, serverURL, protocol.Credentials{Username: username, Password: password}, func(self Self, err error) {
			password.Close()
			resolve(self, err)
		})
	})
}

// resume starts a session from the stored token, if any. Called once
// from Run before the first command.
func (e *Engine) resume() {
	token := e.config.Settings.Get(settings.KeyAccessToken)
	storedUser := e.config.Settings.Get(settings.KeyUserID)
	if token == "" || storedUser == "" {
		return
	}
	userID, err := ref.ParseUserID(storedUser)
	if err != nil {
		e.logger.Warn("discarding stored session with invalid user ID", "user_id", storedUser, "error", err)
		e.forgetSession()
		return
	}
	e.logger.Info("resuming stored session", "user_id", userID)
	e.startSession(e.ctx, e.homeserverURL(), protocol.Credentials{UserID: userID, AccessToken: token}, func(Self, error) {})
}

// startSession runs the adapter's Start off the loop and applies the
// outcome on it. done receives the result after state is updated.
func (e *Engine) startSession(ctx context.Context, serverURL string, credentials protocol.Credentials, done func(Self, error)) {
	e.self = Self{State: LoggingIn, HomeserverURL: serverURL}
	e.notifySelf()

	type started struct {
		identity protocol.Identity
		events   <-chan protocol.Event
	}
	goAsync(e, func() (started, error) {
		identity, events, err := e.config.Protocol.Start(ctx, serverURL, credentials)
		return started{identity: identity, events: events}, err
	}, func(result started, err error) {
		if err != nil {
			e.self = Self{State: LoggedOut}
			e.logger.Warn("login failed", "server", serverURL, "error", err)
			if clienterr.Is(err, clienterr.Auth) {
				if credentials.AccessToken != "" {
					e.forgetSession()
				}
				e.config.Notifier.OnLoginError(err)
			}
			e.notifySelf()
			done(Self{}, err)
			return
		}

		e.self = Self{
			State:         LoggedIn,
			UserID:        result.identity.UserID,
			DeviceID:      result.identity.DeviceID,
			HomeserverURL: serverURL,
		}
		e.protocolEvents = result.events
		e.directory.SetSelf(result.identity.UserID)

		e.setSetting(settings.KeyHomeserverURL, serverURL)
		e.setSetting(settings.KeyAccessToken, result.identity.AccessToken)
		e.setSetting(settings.KeyUserID, result.identity.UserID.String())

		e.logger.Info("logged in", "user_id", result.identity.UserID, "device_id", result.identity.DeviceID)
		e.notifySelf()
		done(e.self, nil)
	})
}

// Logout ends any call, stops syncing, forgets local state and the
// stored token, and invalidates the token on the server. Local state is
// cleared even when the server call fails; that error is returned.
func (e *Engine) Logout(ctx context.Context) error {
	_, err := submit(ctx, e, func(resolve func(struct{}, error)) {
		if e.self.State != LoggedIn {
			resolve(struct{}{}, clienterr.ErrNotLoggedIn)
			return
		}
		e.endSessionLocally()
		e.self.State = LoggingOut
		e.notifySelf()

		goAsync(e, func() (struct{}, error) {
			return struct{}{}, e.config.Protocol.Logout(ctx)
		}, func(_ struct{}, err error) {
			e.self = Self{State: LoggedOut}
			e.notifySelf()
			if err != nil {
				e.logger.Warn("server logout failed", "error", err)
			}
			resolve(struct{}{}, err)
		})
	})
	return err
}

// endSessionLocally tears down everything tied to the session: the
// call, echo timers, the directory and the stored token. The protocol
// adapter is left to the caller.
func (e *Engine) endSessionLocally() {
	e.teardownCall(nil)
	e.stopAllEchoTimers()
	e.protocolEvents = nil
	e.directory.Clear()
	e.forgetSession()
	e.notifyRoomList()
}

func (e *Engine) forgetSession() {
	e.setSetting(settings.KeyAccessToken, "")
	e.setSetting(settings.KeyUserID, "")
}

// Self returns the current session description.
func (e *Engine) Self(ctx context.Context) (Self, error) {
	return query(ctx, e, func() (Self, error) { return e.self, nil })
}
