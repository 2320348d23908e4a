// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the client core: a single dispatch goroutine that
// owns the room directory and the active call, applies events from the
// protocol and media adapters, and executes commands from the
// presentation layer.
//
// Every state mutation happens on the goroutine running [Engine.Run].
// Commands are submitted as closures and answered on a reply channel;
// adapter I/O runs on short-lived goroutines that post their results
// back to the loop. Handlers never block on the network, so a slow
// homeserver cannot stall call events or the presentation layer.
//
// The presentation layer learns about changes through a [Notifier].
// Notifications carry copies; the engine never calls back into the
// presentation synchronously from a command.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dragon-chat/dragon/call"
	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/lib/clock"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/settings"
	"github.com/dragon-chat/dragon/media"
	"github.com/dragon-chat/dragon/protocol"
)

// ErrStopped is returned by commands submitted after Run has returned.
var ErrStopped = errors.New("engine: stopped")

// Protocol is the messaging adapter as seen by the engine.
// *protocol.Adapter implements it.
type Protocol interface {
	Start(ctx context.Context, serverURL string, credentials protocol.Credentials) (protocol.Identity, <-chan protocol.Event, error)
	SendMessage(ctx context.Context, roomID ref.RoomID, body, correlationID string) (ref.EventID, error)
	CreateRoom(ctx context.Context, spec protocol.RoomSpec) (ref.RoomID, error)
	JoinRoom(ctx context.Context, idOrAlias string) (ref.RoomID, error)
	TURN(ctx context.Context) (protocol.TURNCredentials, error)
	MarkRead(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) error
	Logout(ctx context.Context) error
	Close() error
}

// Media is the call media adapter as seen by the engine.
// *media.Adapter implements it.
type Media interface {
	Events() <-chan media.Event
	SetICEConfig(config media.ICEConfig)
	Connect(ctx context.Context, mediaURL, token string, epoch uint64) (media.Handle, error)
	EnableLocalAudio(enabled bool)
	EnableLocalVideo(enabled bool)
	EnableScreenShare(enabled bool)
	Disconnect(handle media.Handle) error
}

// TokenService issues media tokens. *calltoken.Client implements it.
type TokenService interface {
	RequestMediaToken(ctx context.Context, roomID ref.RoomID, participantLabel string) (string, error)
}

// Default timeouts.
const (
	DefaultEchoTimeout    = 15 * time.Second
	DefaultConnectTimeout = 20 * time.Second
)

// Config wires an Engine to its adapters.
type Config struct {
	Protocol Protocol
	Media    Media
	Tokens   TokenService
	Settings settings.Store
	Notifier Notifier
	Clock    clock.Clock
	Logger   *slog.Logger

	// HomeserverURL and MediaURL are used when the settings store has
	// no value for them.
	HomeserverURL string
	MediaURL      string

	// EchoTimeout is how long a sent message may stay pending before
	// it is marked failed.
	EchoTimeout time.Duration

	// ConnectTimeout bounds the token request plus media connect.
	ConnectTimeout time.Duration

	// Retention and VoicePrefix configure the room directory.
	Retention   int
	VoicePrefix string

	// NewCorrelationID returns a fresh transaction ID for an outgoing
	// message. Defaults to "dragon-" followed by a random UUID.
	NewCorrelationID func() string
}

// SessionState is the engine's login lifecycle.
type SessionState int

const (
	LoggedOut SessionState = iota
	LoggingIn
	LoggedIn
	LoggingOut
)

func (s SessionState) String() string {
	switch s {
	case LoggedOut:
		return "logged-out"
	case LoggingIn:
		return "logging-in"
	case LoggedIn:
		return "logged-in"
	case LoggingOut:
		return "logging-out"
	default:
		return "unknown"
	}
}

// Self describes the local session.
type Self struct {
	State         SessionState
	UserID        ref.UserID
	DeviceID      string
	HomeserverURL string

	// SyncPhase is the last phase reported by the sync loop. Valid
	// only when Synced is true.
	Synced    bool
	SyncPhase protocol.Phase
}

// Engine is the reconciliation engine. Create with New, then call Run
// on its own goroutine; every other method may be called from any
// goroutine.
type Engine struct {
	config Config
	logger *slog.Logger

	commands chan func()
	posted   chan func()
	done     chan struct{}

	// Everything below is owned by the Run goroutine.

	ctx       context.Context
	directory *directory.Directory
	call      *call.Call

	self           Self
	protocolEvents <-chan protocol.Event

	// echoTimers holds the timeout for each pending message, keyed by
	// correlation ID. sendAttempts counts transmissions per correlation
	// ID; completions from an earlier attempt are ignored.
	echoTimers   map[string]clock.Timer
	sendAttempts map[string]uint64

	// Call connect bookkeeping for the current epoch.
	callHandle     *media.Handle
	connectCancel  context.CancelFunc
	connectTimer   clock.Timer
	connectReply   func(call.Session, error)
	disconnectDone []func(error)
}

// New returns an Engine. Protocol, Media, Tokens and Settings are
// required.
func New(config Config) *Engine {
	if config.Notifier == nil {
		config.Notifier = NopNotifier{}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.EchoTimeout <= 0 {
		config.EchoTimeout = DefaultEchoTimeout
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.NewCorrelationID == nil {
		config.NewCorrelationID = func() string { return "dragon-" + uuid.NewString() }
	}
	return &Engine{
		config:   config,
		logger:   config.Logger,
		commands: make(chan func()),
		posted:   make(chan func(), 64),
		done:     make(chan struct{}),
		directory: directory.New(directory.Config{
			Retention:   config.Retention,
			VoicePrefix: config.VoicePrefix,
		}),
		call:         call.New(),
		echoTimers:   make(map[string]clock.Timer),
		sendAttempts: make(map[string]uint64),
	}
}

// Run is the dispatch loop. It resumes a stored session if the settings
// hold one, then processes commands and adapter events until ctx is
// cancelled. On return any call is disconnected and the protocol
// session is closed without logging out, so the stored token stays
// valid for the next start.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.ctx = ctx

	e.resume()

	mediaEvents := e.config.Media.Events()
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case command := <-e.commands:
			command()

		case callback := <-e.posted:
			callback()

		case event, ok := <-e.protocolEvents:
			if !ok {
				e.handleStreamClosed()
				continue
			}
			e.handleProtocolEvent(event)

		case event := <-mediaEvents:
			e.handleMediaEvent(event)
		}
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) shutdown() {
	e.stopAllEchoTimers()
	e.abandonConnect(ErrStopped)
	if e.callHandle != nil {
		if err := e.config.Media.Disconnect(*e.callHandle); err != nil {
			e.logger.Warn("disconnecting call on shutdown", "error", err)
		}
		e.callHandle = nil
	}
	e.call.Disconnected()
	for _, done := range e.disconnectDone {
		done(nil)
	}
	e.disconnectDone = nil
	if e.self.State != LoggedOut {
		if err := e.config.Protocol.Close(); err != nil {
			e.logger.Warn("closing protocol session", "error", err)
		}
	}
}

// post queues callback to run on the dispatch goroutine. Safe from any
// goroutine, including timer callbacks. Dropped once Run has returned.
func (e *Engine) post(callback func()) {
	select {
	case e.posted <- callback:
	case <-e.done:
	}
}

// goAsync runs work on its own goroutine and posts apply back to the
// loop with work's results.
func goAsync[T any](e *Engine, work func() (T, error), apply func(T, error)) {
	go func() {
		value, err := work()
		e.post(func() { apply(value, err) })
	}()
}

type result[T any] struct {
	value T
	err   error
}

// submit runs op on the dispatch goroutine and waits for it to call
// resolve. op may resolve immediately or hand resolve to an
// asynchronous completion; it must resolve exactly once. If ctx ends
// first the caller stops waiting but op still runs to completion.
func submit[T any](ctx context.Context, e *Engine, op func(resolve func(T, error))) (T, error) {
	var zero T
	replies := make(chan result[T], 1)
	resolve := func(value T, err error) { replies <- result[T]{value: value, err: err} }

	select {
	case e.commands <- func() { op(resolve) }:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-e.done:
		return zero, ErrStopped
	}

	select {
	case reply := <-replies:
		return reply.value, reply.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-e.done:
		// Shutdown resolves in-flight work; prefer its answer.
		select {
		case reply := <-replies:
			return reply.value, reply.err
		default:
			return zero, ErrStopped
		}
	}
}

// query runs read on the dispatch goroutine and returns its result.
func query[T any](ctx context.Context, e *Engine, read func() (T, error)) (T, error) {
	return submit(ctx, e, func(resolve func(T, error)) { resolve(read()) })
}

func (e *Engine) homeserverURL() string {
	if stored := e.config.Settings.Get(settings.KeyHomeserverURL); stored != "" {
		return stored
	}
	return e.config.HomeserverURL
}

func (e *Engine) mediaURL() string {
	if stored := e.config.Settings.Get(settings.KeyMediaServiceURL); stored != "" {
		return stored
	}
	return e.config.MediaURL
}

func (e *Engine) setSetting(key, value string) {
	if err := e.config.Settings.Set(key, value); err != nil {
		e.logger.Error("saving setting", "key", key, "error", err)
	}
}

func (e *Engine) notifyRoomList() {
	e.config.Notifier.OnRoomListChanged(e.directory.List())
}

func (e *Engine) notifySelf() {
	e.config.Notifier.OnSessionChanged(e.self)
}
