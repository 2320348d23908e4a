// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/dragon-chat/dragon/calltoken"
	"github.com/dragon-chat/dragon/engine"
	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/config"
	"github.com/dragon-chat/dragon/lib/settings"
	"github.com/dragon-chat/dragon/media"
	"github.com/dragon-chat/dragon/protocol"
)

var (
	_ engine.Protocol     = (*protocol.Adapter)(nil)
	_ engine.Media        = (*media.Adapter)(nil)
	_ engine.TokenService = (*calltoken.Client)(nil)
)

// loadConfig reads the file named by --config, else the one named by
// DRAGON_CONFIG, else the defaults, and validates the result.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, clienterr.Wrap(clienterr.Validation, "load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, clienterr.Wrap(clienterr.Validation, "validate config", err)
	}
	return cfg, nil
}

// newCommandLogger writes to stderr: text on a terminal, JSON when
// piped.
func newCommandLogger(level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}

// client bundles an engine with the adapters and store it owns.
type client struct {
	config   *config.Config
	logger   *slog.Logger
	store    *settings.FileStore
	media    *media.Adapter
	notifier *engine.ChannelNotifier
	engine   *engine.Engine

	cancel context.CancelFunc
}

// openClient builds the adapters and the engine. The engine is not
// running until start is called.
func openClient(cfg *config.Config, logger *slog.Logger) (*client, error) {
	if err := os.MkdirAll(cfg.Paths.State, 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	store, err := settings.OpenFile(cfg.SettingsPath(), cfg.KeyPath(), logger.With("component", "settings"))
	if err != nil {
		return nil, err
	}

	tokenServiceURL := cfg.Servers.TokenService
	if stored := store.Get(settings.KeyMediaServiceURL); stored != "" {
		tokenServiceURL = stored
	}
	tokens, err := calltoken.New(calltoken.Config{
		ServiceURL: tokenServiceURL,
		Logger:     logger.With("component", "calltoken"),
	})
	if err != nil {
		store.Close()
		return nil, clienterr.Wrap(clienterr.Validation, "configure token service", err)
	}

	mediaAdapter := media.New(media.Config{Logger: logger.With("component", "media")})
	notifier := engine.NewChannelNotifier()
	instance := engine.New(engine.Config{
		Protocol: protocol.New(protocol.Config{
			Logger:        logger.With("component", "protocol"),
			TimelineLimit: cfg.Session.TimelineRetention,
		}),
		Media:          mediaAdapter,
		Tokens:         tokens,
		Settings:       store,
		Notifier:       notifier,
		Logger:         logger.With("component", "engine"),
		HomeserverURL:  cfg.Servers.Homeserver,
		MediaURL:       cfg.Servers.Media,
		EchoTimeout:    time.Duration(cfg.Session.EchoTimeout),
		ConnectTimeout: time.Duration(cfg.Session.ConnectTimeout),
		Retention:      cfg.Session.TimelineRetention,
		VoicePrefix:    cfg.Session.VoicePrefix,
	})

	return &client{
		config:   cfg,
		logger:   logger,
		store:    store,
		media:    mediaAdapter,
		notifier: notifier,
		engine:   instance,
	}, nil
}

// start runs the engine until ctx is cancelled or close is called.
func (c *client) start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		if err := c.engine.Run(ctx); err != nil {
			c.logger.Error("engine stopped", "error", err)
		}
	}()
}

// close stops the engine, waits for it to release the session, and
// closes the media adapter, notifier and store.
func (c *client) close() {
	if c.cancel != nil {
		c.cancel()
		<-c.engine.Done()
	}
	if err := c.media.Close(); err != nil {
		c.logger.Warn("closing media adapter", "error", err)
	}
	c.notifier.Close()
	if err := c.store.Close(); err != nil {
		c.logger.Warn("closing settings", "error", err)
	}
}

// hasStoredSession reports whether the engine will resume a session on
// start.
func (c *client) hasStoredSession() bool {
	return c.store.Get(settings.KeyAccessToken) != "" && c.store.Get(settings.KeyUserID) != ""
}

// homeserverURL is the server the login form offers first.
func (c *client) homeserverURL() string {
	if stored := c.store.Get(settings.KeyHomeserverURL); stored != "" {
		return stored
	}
	return c.config.Servers.Homeserver
}

var errSessionEnded = errors.New("session ended")

// awaitSession consumes notifications until the session settles:
// LoggedIn returns the Self, LoggedOut returns the login error the
// engine reported (or errSessionEnded).
func awaitSession(ctx context.Context, notifications <-chan engine.Notification) (engine.Self, error) {
	var loginErr error
	for {
		select {
		case <-ctx.Done():
			return engine.Self{}, ctx.Err()
		case notification, ok := <-notifications:
			if !ok {
				return engine.Self{}, errSessionEnded
			}
			switch notification := notification.(type) {
			case engine.LoginError:
				loginErr = notification.Err
			case engine.SessionChanged:
				switch notification.Self.State {
				case engine.LoggedIn:
					return notification.Self, nil
				case engine.LoggedOut:
					if loginErr != nil {
						return engine.Self{}, loginErr
					}
					return engine.Self{}, errSessionEnded
				}
			}
		}
	}
}

// awaitPrepared consumes notifications until the initial sync has been
// applied.
func awaitPrepared(ctx context.Context, notifications <-chan engine.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification, ok := <-notifications:
			if !ok {
				return errSessionEnded
			}
			switch notification := notification.(type) {
			case engine.SyncStateChanged:
				if notification.Phase == protocol.PhasePrepared {
					return nil
				}
			case engine.LoginError:
				return notification.Err
			}
		}
	}
}
