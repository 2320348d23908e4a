// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/clock"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
	"github.com/dragon-chat/dragon/lib/secret"
	"github.com/dragon-chat/dragon/messaging"
)

// Credentials selects how Start authenticates. Set Username and
// Password for a password login, or UserID and AccessToken to resume a
// stored session.
type Credentials struct {
	Username string
	Password *secret.Buffer

	UserID      ref.UserID
	AccessToken string
}

// Identity is the authenticated account. AccessToken is returned so the
// caller can persist it.
type Identity struct {
	UserID      ref.UserID
	DeviceID    string
	AccessToken string
}

// RoomSpec describes a room to create.
type RoomSpec struct {
	Name       string
	Topic      string
	Invite     []ref.UserID
	IsDirect   bool
	Preset     string
	Visibility string
	// RoomType is written to creation_content.type when non-empty.
	RoomType string
}

// TURNCredentials are time-limited TURN server credentials.
type TURNCredentials struct {
	URIs     []string
	Username string
	Password string
	TTL      time.Duration
}

// Config configures an Adapter. Zero values pick production defaults.
type Config struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Clock      clock.Clock

	// LongPollTimeout is the server-side /sync wait. Default 30s.
	LongPollTimeout time.Duration
	// TimelineLimit caps timeline events per room in the initial sync.
	// Default 50.
	TimelineLimit int
	// RetryBackoff is the first reconnect delay, doubled per failure up
	// to MaxRetryBackoff. Defaults 1s and 30s.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	// EventBuffer is the capacity of the event channel. Default 256.
	EventBuffer int
}

// Adapter is the protocol session adapter. One Adapter serves one
// login at a time; after Logout it may be started again.
type Adapter struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	session *messaging.Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an Adapter with defaults applied.
func New(config Config) *Adapter {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.LongPollTimeout <= 0 {
		config.LongPollTimeout = 30 * time.Second
	}
	if config.TimelineLimit <= 0 {
		config.TimelineLimit = 50
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	if config.MaxRetryBackoff < config.RetryBackoff {
		config.MaxRetryBackoff = 30 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 256
	}
	return &Adapter{
		config: config,
		logger: config.Logger,
	}
}

// Start authenticates against serverURL and starts the sync loop. The
// returned channel is closed when the loop stops. ctx bounds the
// authentication requests only; the loop runs until Logout or Close.
func (a *Adapter) Start(ctx context.Context, serverURL string, credentials Credentials) (Identity, <-chan Event, error) {
	a.mu.Lock()
	started := a.session != nil
	a.mu.Unlock()
	if started {
		return Identity{}, nil, clienterr.ErrAlreadyLoggedIn
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: serverURL,
		HTTPClient:    a.config.HTTPClient,
		Logger:        a.logger,
	})
	if err != nil {
		return Identity{}, nil, clienterr.Wrap(clienterr.Validation, opLogin, err)
	}

	var session *messaging.Session
	switch {
	case credentials.Password != nil:
		session, err = client.Login(ctx, credentials.Username, credentials.Password)
		if err != nil {
			return Identity{}, nil, classify(opLogin, err)
		}
	case credentials.AccessToken != "":
		session, err = client.SessionFromToken(credentials.UserID, credentials.AccessToken)
		if err != nil {
			return Identity{}, nil, clienterr.Wrap(clienterr.Validation, opResume, err)
		}
		if _, err := session.WhoAmI(ctx); err != nil {
			session.Close()
			return Identity{}, nil, classify(opResume, err)
		}
	default:
		return Identity{}, nil, clienterr.New(clienterr.Validation, opLogin, "no password or access token provided")
	}

	identity := Identity{
		UserID:      session.UserID(),
		DeviceID:    session.DeviceID(),
		AccessToken: session.AccessToken(),
	}

	events := make(chan Event, a.config.EventBuffer)
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		cancel()
		session.Close()
		return Identity{}, nil, clienterr.ErrAlreadyLoggedIn
	}
	a.session = session
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		defer close(events)
		a.syncLoop(loopCtx, session, events)
	}()

	return identity, events, nil
}

func (a *Adapter) currentSession() (*messaging.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, clienterr.ErrNotLoggedIn
	}
	return a.session, nil
}

// SendMessage sends body to roomID using correlationID as the Matrix
// transaction ID. The echo arriving through sync carries the same
// value in Message.CorrelationID.
func (a *Adapter) SendMessage(ctx context.Context, roomID ref.RoomID, body, correlationID string) (ref.EventID, error) {
	session, err := a.currentSession()
	if err != nil {
		return ref.EventID{}, err
	}
	eventID, err := session.SendMessage(ctx, roomID, correlationID, messaging.NewTextMessage(body))
	if err != nil {
		return ref.EventID{}, classify(opSend, err)
	}
	return eventID, nil
}

// CreateRoom creates a room from spec.
func (a *Adapter) CreateRoom(ctx context.Context, spec RoomSpec) (ref.RoomID, error) {
	session, err := a.currentSession()
	if err != nil {
		return ref.RoomID{}, err
	}
	request := messaging.CreateRoomRequest{
		Name:       spec.Name,
		Topic:      spec.Topic,
		Preset:     spec.Preset,
		Visibility: spec.Visibility,
		IsDirect:   spec.IsDirect,
	}
	for _, userID := range spec.Invite {
		request.Invite = append(request.Invite, userID.String())
	}
	if spec.RoomType != "" {
		request.CreationContent = map[string]any{"type": spec.RoomType}
	}
	roomID, err := session.CreateRoom(ctx, request)
	if err != nil {
		return ref.RoomID{}, classify(opCreateRoom, err)
	}
	return roomID, nil
}

// JoinRoom joins "#alias:server" (resolved through the room directory
// first) or "!id:server". Anything else is a Validation error and never
// reaches the network.
func (a *Adapter) JoinRoom(ctx context.Context, idOrAlias string) (ref.RoomID, error) {
	kind, roomID, alias, err := ref.ParseJoinTarget(idOrAlias)
	if err != nil {
		return ref.RoomID{}, clienterr.Wrap(clienterr.Validation, opJoinRoom, err)
	}
	session, err := a.currentSession()
	if err != nil {
		return ref.RoomID{}, err
	}
	if kind == ref.TargetAlias {
		roomID, err = session.ResolveAlias(ctx, alias)
		if err != nil {
			return ref.RoomID{}, classify(opJoinRoom, err)
		}
	}
	joined, err := session.JoinRoom(ctx, roomID.String())
	if err != nil {
		return ref.RoomID{}, classify(opJoinRoom, err)
	}
	if joined.IsZero() {
		joined = roomID
	}
	return joined, nil
}

// TURN fetches TURN credentials for the media session.
func (a *Adapter) TURN(ctx context.Context) (TURNCredentials, error) {
	session, err := a.currentSession()
	if err != nil {
		return TURNCredentials{}, err
	}
	response, err := session.TURNCredentials(ctx)
	if err != nil {
		return TURNCredentials{}, classify(opTURN, err)
	}
	return TURNCredentials{
		URIs:     response.URIs,
		Username: response.Username,
		Password: response.Password,
		TTL:      time.Duration(response.TTL) * time.Second,
	}, nil
}

// MarkRead sends a read receipt for eventID.
func (a *Adapter) MarkRead(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) error {
	session, err := a.currentSession()
	if err != nil {
		return err
	}
	if err := session.SendReadReceipt(ctx, roomID, eventID); err != nil {
		return classify(opReceipt, err)
	}
	return nil
}

// Logout stops the sync loop, invalidates the token on the server and
// forgets the session. The local session is torn down even when the
// server request fails; the returned error reports that failure.
func (a *Adapter) Logout(ctx context.Context) error {
	session := a.stop()
	if session == nil {
		return clienterr.ErrNotLoggedIn
	}
	defer session.Close()
	if err := session.Logout(ctx); err != nil {
		return classify(opLogout, err)
	}
	return nil
}

// Close stops the sync loop without logging out, so the stored token
// stays valid for the next start.
func (a *Adapter) Close() error {
	session := a.stop()
	if session == nil {
		return nil
	}
	return session.Close()
}

// stop cancels the sync loop, waits for it to exit and detaches the
// session.
func (a *Adapter) stop() *messaging.Session {
	a.mu.Lock()
	session, cancel, done := a.session, a.cancel, a.done
	a.session, a.cancel, a.done = nil, nil, nil
	a.mu.Unlock()
	if session == nil {
		return nil
	}
	cancel()
	<-done
	return session
}

// timelineFilter limits the initial sync's per-room timeline and drops
// presence, which the client does not display.
func timelineFilter(limit int) string {
	return fmt.Sprintf(`{"presence":{"types":[]},"room":{"timeline":{"limit":%d},"state":{"types":[%q,%q,%q,%q]}}}`,
		limit,
		schema.EventTypeRoomName, schema.EventTypeRoomTopic, schema.EventTypeRoomMember, schema.EventTypeRoomCreate)
}
