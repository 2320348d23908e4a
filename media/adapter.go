// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/schema"
)

// Config configures an Adapter.
type Config struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Source produces local media. Defaults to SilentSource.
	Source Source
	// IncludeLoopback adds loopback ICE candidates. Needed when the SFU
	// runs on the same machine (development and tests).
	IncludeLoopback bool
	// EventBuffer is the capacity of the event channel. Default 256.
	EventBuffer int
}

// Handle identifies one connected media session.
type Handle struct {
	ID            uint64
	Epoch         uint64
	LocalIdentity string
}

// Adapter is the media session adapter. It holds at most one current
// session; Enable* calls apply to it.
type Adapter struct {
	config Config
	logger *slog.Logger
	events chan Event

	nextID atomic.Uint64

	mu      sync.Mutex
	current *session
	iceConf ICEConfig
}

// New returns an Adapter with defaults applied.
func New(config Config) *Adapter {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Source == nil {
		config.Source = SilentSource{}
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 256
	}
	return &Adapter{
		config: config,
		logger: config.Logger,
		events: make(chan Event, config.EventBuffer),
	}
}

// Events returns the adapter's event stream. It is never closed.
func (a *Adapter) Events() <-chan Event { return a.events }

// SetICEConfig replaces the ICE servers used by subsequent Connect calls.
func (a *Adapter) SetICEConfig(config ICEConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.iceConf = config
}

// Connect establishes a media session. It returns once the control
// channel is open or ctx ends. Every failure is a Connect-kind error.
// On success the local participant is announced with a
// ParticipantJoined carrying IsLocal.
func (a *Adapter) Connect(ctx context.Context, mediaURL, token string, epoch uint64) (Handle, error) {
	handle, err := a.connect(ctx, mediaURL, token, epoch)
	if err != nil {
		return Handle{}, clienterr.Wrap(clienterr.Connect, "media connect", err)
	}
	return handle, nil
}

func (a *Adapter) connect(ctx context.Context, mediaURL, token string, epoch uint64) (Handle, error) {
	endpoint, err := signalingURL(mediaURL)
	if err != nil {
		return Handle{}, err
	}
	identity, err := identityFromToken(token)
	if err != nil {
		return Handle{}, err
	}

	peerConnection, err := a.newPeerConnection()
	if err != nil {
		return Handle{}, fmt.Errorf("creating peer connection: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		adapter:  a,
		id:       a.nextID.Add(1),
		epoch:    epoch,
		identity: identity,
		pc:       peerConnection,
		tracks:   make(map[schema.TrackKind]*webrtc.TrackLocalStaticSample),
		captures: make(map[schema.TrackKind]context.CancelFunc),
		ctx:      sessionCtx,
		cancel:   cancel,
	}
	succeeded := false
	defer func() {
		if !succeeded {
			s.close()
		}
	}()

	if err := s.addLocalTracks(); err != nil {
		return Handle{}, err
	}

	ordered := true
	control, err := peerConnection.CreateDataChannel(ControlLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return Handle{}, fmt.Errorf("creating control channel: %w", err)
	}
	s.control = control
	opened := make(chan struct{})
	control.OnOpen(func() { close(opened) })
	control.OnMessage(s.handleControl)

	peerConnection.OnTrack(s.handleRemoteTrack)
	peerConnection.OnConnectionStateChange(s.handleStateChange)

	offer, err := peerConnection.CreateOffer(nil)
	if err != nil {
		return Handle{}, fmt.Errorf("creating SDP offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)
	if err := peerConnection.SetLocalDescription(offer); err != nil {
		return Handle{}, fmt.Errorf("setting local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return Handle{}, fmt.Errorf("ICE gathering: %w", ctx.Err())
	}

	answer, err := exchangeSDP(ctx, a.config.HTTPClient, endpoint, token, peerConnection.LocalDescription().SDP)
	if err != nil {
		return Handle{}, err
	}
	if err := peerConnection.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return Handle{}, fmt.Errorf("setting remote description: %w", err)
	}

	select {
	case <-opened:
	case <-ctx.Done():
		return Handle{}, fmt.Errorf("waiting for control channel: %w", ctx.Err())
	}

	previous, err := a.install(ctx, s)
	if err != nil {
		return Handle{}, err
	}
	if previous != nil {
		a.logger.Warn("replacing media session that was never disconnected", "session", previous.id)
		previous.close()
	}

	succeeded = true
	a.logger.Info("media session connected",
		"session", s.id,
		"epoch", epoch,
		"identity", identity,
	)
	s.emit(ParticipantJoined{Epoch: epoch, Identity: identity, IsLocal: true})
	return Handle{ID: s.id, Epoch: epoch, LocalIdentity: identity}, nil
}

// install makes s the current session and returns the one it replaced.
// A connect whose ctx already ended has been given up on by its caller,
// so it must not displace whatever session is live now.
func (a *Adapter) install(ctx context.Context, s *session) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect abandoned: %w", err)
	}
	previous := a.current
	a.current = s
	return previous, nil
}

// EnableLocalAudio publishes or unpublishes the microphone.
func (a *Adapter) EnableLocalAudio(enabled bool) { a.setLocalTrack(schema.TrackAudio, enabled) }

// EnableLocalVideo publishes or unpublishes the camera.
func (a *Adapter) EnableLocalVideo(enabled bool) { a.setLocalTrack(schema.TrackVideo, enabled) }

// EnableScreenShare publishes or unpublishes the screen.
func (a *Adapter) EnableScreenShare(enabled bool) { a.setLocalTrack(schema.TrackScreen, enabled) }

// setLocalTrack runs the change asynchronously and reports the outcome
// as a ParticipantTrackChanged for the local identity.
func (a *Adapter) setLocalTrack(kind schema.TrackKind, enabled bool) {
	a.mu.Lock()
	s := a.current
	a.mu.Unlock()
	if s == nil {
		a.logger.Warn("local track change without a media session", "kind", kind, "enabled", enabled)
		return
	}
	go func() {
		err := s.setTrack(kind, enabled)
		if err != nil {
			a.logger.Warn("local track change failed", "kind", kind, "enabled", enabled, "error", err)
			err = clienterr.Wrap(clienterr.Connect, "enable "+string(kind), err)
		}
		s.emit(ParticipantTrackChanged{
			Epoch:    s.epoch,
			Identity: s.identity,
			Kind:     kind,
			Enabled:  enabled,
			Err:      err,
		})
	}()
}

// Disconnect tears down the session. No further events are emitted for
// it. Unknown or already-closed handles are ignored.
func (a *Adapter) Disconnect(handle Handle) error {
	a.mu.Lock()
	s := a.current
	if s == nil || s.id != handle.ID {
		a.mu.Unlock()
		return nil
	}
	a.current = nil
	a.mu.Unlock()

	a.logger.Info("media session disconnecting", "session", s.id, "epoch", s.epoch)
	return s.close()
}

// Close tears down the current session, if any.
func (a *Adapter) Close() error {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.close()
}

// newPeerConnection creates a pion PeerConnection with the default
// codecs and the current ICE config.
func (a *Adapter) newPeerConnection() (*webrtc.PeerConnection, error) {
	a.mu.Lock()
	config := webrtc.Configuration{ICEServers: a.iceConf.Servers}
	a.mu.Unlock()

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("registering codecs: %w", err)
	}
	settingEngine := webrtc.SettingEngine{}
	if a.config.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(config)
}

// session is one peer connection to the SFU.
type session struct {
	adapter  *Adapter
	id       uint64
	epoch    uint64
	identity string
	pc       *webrtc.PeerConnection
	control  *webrtc.DataChannel
	tracks   map[schema.TrackKind]*webrtc.TrackLocalStaticSample

	mu       sync.Mutex
	captures map[schema.TrackKind]context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	lost     atomic.Bool
	closeErr error
	closed   sync.Once
}

// addLocalTracks negotiates one send/receive transceiver per track kind
// up front, so enabling media later needs no renegotiation.
func (s *session) addLocalTracks() error {
	codecs := map[schema.TrackKind]webrtc.RTPCodecCapability{
		schema.TrackAudio:  {MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		schema.TrackVideo:  {MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		schema.TrackScreen: {MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
	}
	for _, kind := range []schema.TrackKind{schema.TrackAudio, schema.TrackVideo, schema.TrackScreen} {
		track, err := webrtc.NewTrackLocalStaticSample(codecs[kind], string(kind), s.identity)
		if err != nil {
			return fmt.Errorf("creating %s track: %w", kind, err)
		}
		transceiver, err := s.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			return fmt.Errorf("adding %s transceiver: %w", kind, err)
		}
		s.tracks[kind] = track
		go drainRTCP(transceiver.Sender())
	}
	return nil
}

// drainRTCP reads RTCP for a sender until it closes. pion needs the
// reads for its interceptors to run.
func drainRTCP(sender *webrtc.RTPSender) {
	buffer := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buffer); err != nil {
			return
		}
	}
}

func (s *session) setTrack(kind schema.TrackKind, enabled bool) error {
	track, ok := s.tracks[kind]
	if !ok {
		return fmt.Errorf("no %s track negotiated", kind)
	}

	s.mu.Lock()
	cancelCapture, running := s.captures[kind]
	switch {
	case enabled && !running:
		captureCtx, cancel := context.WithCancel(s.ctx)
		if err := s.adapter.config.Source.Open(captureCtx, kind, track); err != nil {
			cancel()
			s.mu.Unlock()
			return fmt.Errorf("opening %s source: %w", kind, err)
		}
		s.captures[kind] = cancel
	case !enabled && running:
		cancelCapture()
		delete(s.captures, kind)
	}
	s.mu.Unlock()

	message, err := EncodeControl(ControlMessage{Type: ControlTrack, Identity: s.identity, Kind: kind, Enabled: enabled})
	if err != nil {
		return err
	}
	if err := s.control.Send(message); err != nil {
		return fmt.Errorf("announcing %s track: %w", kind, err)
	}
	return nil
}

func (s *session) handleControl(message webrtc.DataChannelMessage) {
	control, err := DecodeControl(message.Data)
	if err != nil {
		s.adapter.logger.Warn("dropping invalid control message", "session", s.id, "error", err)
		return
	}
	if control.Identity == s.identity {
		// The SFU echoes the local participant's own announcements.
		return
	}
	s.emit(control.event(s.epoch))
}

func (s *session) handleRemoteTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	identity := remote.StreamID()
	kind, err := schema.ParseTrackKind(remote.ID())
	if err != nil {
		kind = schema.TrackVideo
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			kind = schema.TrackAudio
		}
	}
	attachment := AttachmentHandle(strings.Join([]string{identity, string(kind), remote.ID()}, "/"))
	s.adapter.logger.Debug("remote track ready", "session", s.id, "identity", identity, "kind", kind)
	s.emit(TrackReady{Epoch: s.epoch, Identity: identity, Kind: kind, Attachment: attachment})

	go func() {
		buffer := make([]byte, 1500)
		for {
			if _, _, err := remote.Read(buffer); err != nil {
				return
			}
		}
	}()
}

func (s *session) handleStateChange(state webrtc.PeerConnectionState) {
	s.adapter.logger.Debug("peer connection state", "session", s.id, "state", state.String())
	if state != webrtc.PeerConnectionStateFailed {
		return
	}
	if s.ctx.Err() != nil || !s.lost.CompareAndSwap(false, true) {
		return
	}
	s.adapter.logger.Warn("media session lost", "session", s.id, "state", state.String())
	s.emit(ParticipantLeft{Epoch: s.epoch, Identity: s.identity})
}

// emit delivers event unless the session has been closed.
func (s *session) emit(event Event) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.adapter.events <- event:
	case <-s.ctx.Done():
	}
}

func (s *session) close() error {
	s.closed.Do(func() {
		s.cancel()
		s.mu.Lock()
		for kind, cancel := range s.captures {
			cancel()
			delete(s.captures, kind)
		}
		s.mu.Unlock()
		if err := s.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
			s.closeErr = fmt.Errorf("closing peer connection: %w", err)
		}
	})
	return s.closeErr
}
