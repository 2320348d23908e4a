// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dragon-chat/dragon/directory"
	"github.com/dragon-chat/dragon/lib/clock"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/lib/secret"
	"github.com/dragon-chat/dragon/lib/settings"
	"github.com/dragon-chat/dragon/lib/testutil"
	"github.com/dragon-chat/dragon/media"
	"github.com/dragon-chat/dragon/protocol"
)

const (
	testTimeout = 5 * time.Second
	alice       = "@alice:local"
	bob         = "@bob:local"
)

type sentMessage struct {
	roomID        ref.RoomID
	body          string
	correlationID string
}

// fakeProtocol records every adapter call. The test drives the sync
// stream by writing to events.
type fakeProtocol struct {
	mu sync.Mutex

	startErr    error
	starts      []protocol.Credentials
	events      chan protocol.Event
	sendErr     error
	createID    ref.RoomID
	createSpecs []protocol.RoomSpec
	joinID      ref.RoomID
	joins       []string
	sendCalls   int
	logouts     int
	closes      int
	turnCalls   int

	sends chan sentMessage
	reads chan ref.EventID

	// When set, each SendMessage hands the test a channel and returns
	// whatever error the test writes to it.
	sendResults chan chan error
}

func newFakeProtocol() *fakeProtocol {
	return &fakeProtocol{
		events: make(chan protocol.Event, 64),
		sends:  make(chan sentMessage, 16),
		reads:  make(chan ref.EventID, 16),
	}
}

func (p *fakeProtocol) Start(ctx context.Context, serverURL string, credentials protocol.Credentials) (protocol.Identity, <-chan protocol.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, credentials)
	if p.startErr != nil {
		return protocol.Identity{}, nil, p.startErr
	}
	return protocol.Identity{
		UserID:      ref.MustParseUserID(alice),
		DeviceID:    "DEVICE",
		AccessToken: "syt_token",
	}, p.events, nil
}

func (p *fakeProtocol) SendMessage(ctx context.Context, roomID ref.RoomID, body, correlationID string) (ref.EventID, error) {
	p.mu.Lock()
	p.sendCalls++
	err := p.sendErr
	results := p.sendResults
	p.mu.Unlock()
	p.sends <- sentMessage{roomID: roomID, body: body, correlationID: correlationID}
	if results != nil {
		result := make(chan error, 1)
		results <- result
		err = <-result
	}
	if err != nil {
		return ref.EventID{}, err
	}
	return ref.MustParseEventID("$sent"), nil
}

func (p *fakeProtocol) CreateRoom(ctx context.Context, spec protocol.RoomSpec) (ref.RoomID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createSpecs = append(p.createSpecs, spec)
	return p.createID, nil
}

func (p *fakeProtocol) JoinRoom(ctx context.Context, idOrAlias string) (ref.RoomID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joins = append(p.joins, idOrAlias)
	return p.joinID, nil
}

func (p *fakeProtocol) TURN(ctx context.Context) (protocol.TURNCredentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turnCalls++
	return protocol.TURNCredentials{URIs: []string{"turn:turn.local:3478"}, Username: "u", Password: "p"}, nil
}

func (p *fakeProtocol) MarkRead(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) error {
	p.reads <- eventID
	return nil
}

func (p *fakeProtocol) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	return nil
}

func (p *fakeProtocol) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// calls returns how many adapter calls other than Start and MarkRead
// were made.
func (p *fakeProtocol) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendCalls + len(p.createSpecs) + len(p.joins) + p.logouts + p.turnCalls
}

type trackRequest struct {
	kind    schema.TrackKind
	enabled bool
}

// fakeMedia connects instantly unless gate is set, in which case
// Connect waits for a value on gate and ignores its context, so a test
// can resolve a connect after the engine has given up on it.
type fakeMedia struct {
	events      chan media.Event
	tracks      chan trackRequest
	disconnects chan media.Handle

	mu         sync.Mutex
	gate       chan struct{}
	connectErr error
	connects   int
	ice        []media.ICEConfig
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		events:      make(chan media.Event, 64),
		tracks:      make(chan trackRequest, 16),
		disconnects: make(chan media.Handle, 16),
	}
}

func (m *fakeMedia) Events() <-chan media.Event { return m.events }

func (m *fakeMedia) SetICEConfig(config media.ICEConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ice = append(m.ice, config)
}

func (m *fakeMedia) Connect(ctx context.Context, mediaURL, token string, epoch uint64) (media.Handle, error) {
	m.mu.Lock()
	m.connects++
	id := uint64(m.connects)
	gate := m.gate
	err := m.connectErr
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return media.Handle{}, err
	}
	return media.Handle{ID: id, Epoch: epoch, LocalIdentity: alice}, nil
}

func (m *fakeMedia) EnableLocalAudio(enabled bool) {
	m.tracks <- trackRequest{kind: schema.TrackAudio, enabled: enabled}
}

func (m *fakeMedia) EnableLocalVideo(enabled bool) {
	m.tracks <- trackRequest{kind: schema.TrackVideo, enabled: enabled}
}

func (m *fakeMedia) EnableScreenShare(enabled bool) {
	m.tracks <- trackRequest{kind: schema.TrackScreen, enabled: enabled}
}

func (m *fakeMedia) Disconnect(handle media.Handle) error {
	m.disconnects <- handle
	return nil
}

type fakeTokens struct {
	mu    sync.Mutex
	err   error
	rooms []ref.RoomID
}

func (f *fakeTokens) RequestMediaToken(ctx context.Context, roomID ref.RoomID, participantLabel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, roomID)
	if f.err != nil {
		return "", f.err
	}
	return "media-token", nil
}

// harness runs an Engine against fakes for the duration of a test.
type harness struct {
	t        *testing.T
	engine   *Engine
	protocol *fakeProtocol
	media    *fakeMedia
	tokens   *fakeTokens
	notifier *ChannelNotifier
	clock    *clock.FakeClock
	settings *settings.MemoryStore
	ctx      context.Context
}

func newHarness(t *testing.T, stored map[string]string, configure ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		protocol: newFakeProtocol(),
		media:    newFakeMedia(),
		tokens:   &fakeTokens{},
		notifier: NewChannelNotifier(),
		clock:    clock.Fake(time.Unix(1_700_000_000, 0)),
		settings: settings.NewMemoryStore(stored),
	}
	for _, apply := range configure {
		apply(h)
	}
	correlation := 0
	h.engine = New(Config{
		Protocol:       h.protocol,
		Media:          h.media,
		Tokens:         h.tokens,
		Settings:       h.settings,
		Notifier:       h.notifier,
		Clock:          h.clock,
		Logger:         testutil.DiscardLogger(),
		HomeserverURL:  "https://matrix.local",
		MediaURL:       "wss://media.local",
		EchoTimeout:    15 * time.Second,
		ConnectTimeout: 20 * time.Second,
		Retention:      5,
		VoicePrefix:    "🔊",
		NewCorrelationID: func() string {
			correlation++
			return fmt.Sprintf("dragon-test-%d", correlation)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	go h.engine.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.engine.Done()
		h.notifier.Close()
	})
	return h
}

// next returns the first notification of type T, discarding others.
func next[T Notification](h *harness) T {
	h.t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case notification := <-h.notifier.C():
			if typed, ok := notification.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			h.t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// nextMatching returns the first notification of type T satisfying
// match.
func nextMatching[T Notification](h *harness, match func(T) bool) T {
	h.t.Helper()
	for {
		if typed := next[T](h); match(typed) {
			return typed
		}
	}
}

func (h *harness) password() *secret.Buffer {
	h.t.Helper()
	buffer, err := secret.NewFromString("hunter2")
	if err != nil {
		h.t.Fatalf("secret: %v", err)
	}
	h.t.Cleanup(func() { buffer.Close() })
	return buffer
}

// login logs in and applies an initial sync with the given events.
// Returns the room list delivered when the sync is prepared.
func (h *harness) login(initial ...protocol.Event) []directory.Summary {
	h.t.Helper()
	if _, err := h.engine.Login(h.ctx, LoginRequest{Username: "alice", Password: h.password()}); err != nil {
		h.t.Fatalf("Login: %v", err)
	}
	for _, event := range initial {
		h.protocol.events <- event
	}
	h.protocol.events <- protocol.SyncStateChanged{Phase: protocol.PhasePrepared}
	next[SyncStateChanged](h)
	return next[RoomListChanged](h).Rooms
}

// apply feeds live sync events and returns once the loop has handled
// them.
func (h *harness) apply(events ...protocol.Event) {
	h.t.Helper()
	for _, event := range events {
		h.protocol.events <- event
	}
	drain(h, h.protocol.events)
}

// applyMedia feeds media events and returns once the loop has handled
// them.
func (h *harness) applyMedia(events ...media.Event) {
	h.t.Helper()
	for _, event := range events {
		h.media.events <- event
	}
	drain(h, h.media.events)
}

// drain waits until the loop has received everything on events, then
// round-trips a query. The loop handles one input at a time, so the
// query is answered only after the last event's handler returns.
func drain[T any](h *harness, events chan T) {
	h.t.Helper()
	deadline := time.Now().Add(testTimeout)
	for len(events) > 0 {
		if time.Now().After(deadline) {
			h.t.Fatal("timed out waiting for the engine to consume events")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := h.engine.Self(h.ctx); err != nil {
		h.t.Fatalf("Self: %v", err)
	}
}

func remoteMessage(id, sender, body string, ts int64) schema.Message {
	return schema.Message{
		ID:        id,
		Sender:    ref.MustParseUserID(sender),
		Body:      body,
		Timestamp: time.UnixMilli(ts),
		State:     schema.Sent,
	}
}

func named(roomID, name string) protocol.RoomMetadataChanged {
	return protocol.RoomMetadataChanged{RoomID: ref.MustParseRoomID(roomID), Name: &name}
}

func joined(roomID, user string) protocol.MembershipChanged {
	return protocol.MembershipChanged{
		RoomID: ref.MustParseRoomID(roomID),
		Member: schema.Member{UserID: ref.MustParseUserID(user), Membership: schema.Joined},
	}
}
