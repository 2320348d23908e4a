// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package calltoken requests media session tokens from the call token
// service. The service mints a short-lived JWT naming the media room
// (the Matrix room ID) and the participant; the media server verifies
// it. The client parses the token without verifying its signature, only
// to reject one that has already expired before spending a connect
// attempt on it.
package calltoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/lib/clock"
	"github.com/dragon-chat/dragon/lib/netutil"
	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/version"
)

// TokenPath is the service endpoint, relative to the service URL.
const TokenPath = "/api/token"

// Request is the JSON body sent to the service.
type Request struct {
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

// Response is the JSON body returned by the service.
type Response struct {
	Token string `json:"token"`
}

// Config configures a Client.
type Config struct {
	// ServiceURL is the token service base URL.
	ServiceURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Clock is used for the expiry check. Defaults to the real clock.
	Clock clock.Clock
}

// Client talks to the call token service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	clock      clock.Clock
}

// New validates the service URL and returns a Client.
func New(config Config) (*Client, error) {
	parsed, err := url.Parse(config.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("calltoken: invalid service URL %q: %w", config.ServiceURL, err)
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("calltoken: service URL %q must be http or https", config.ServiceURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("calltoken: service URL %q has no host", config.ServiceURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + TokenPath

	client := &Client{
		endpoint:   parsed.String(),
		httpClient: config.HTTPClient,
		logger:     config.Logger,
		clock:      config.Clock,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	return client, nil
}

// RequestMediaToken asks the service for a token admitting
// participantLabel to the media room for roomID. Every failure is a
// Connect-kind error.
func (c *Client) RequestMediaToken(ctx context.Context, roomID ref.RoomID, participantLabel string) (string, error) {
	token, err := c.request(ctx, roomID, participantLabel)
	if err != nil {
		return "", clienterr.Wrap(clienterr.Connect, "request media token", err)
	}
	return token, nil
}

func (c *Client) request(ctx context.Context, roomID ref.RoomID, participantLabel string) (string, error) {
	if roomID.IsZero() {
		return "", fmt.Errorf("room ID is required")
	}
	if participantLabel == "" {
		return "", fmt.Errorf("participant label is required")
	}
	body, err := json.Marshal(Request{RoomName: roomID.String(), ParticipantName: participantLabel})
	if err != nil {
		return "", fmt.Errorf("encoding token request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("token service unreachable: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token service returned HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var decoded Response
	if err := netutil.DecodeResponse(response.Body, &decoded); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if decoded.Token == "" {
		return "", fmt.Errorf("token service returned an empty token")
	}
	if err := c.checkExpiry(decoded.Token); err != nil {
		return "", err
	}

	c.logger.Debug("media token issued", "room_id", roomID, "participant", participantLabel)
	return decoded.Token, nil
}

// checkExpiry rejects a token whose exp claim is already in the past.
// Tokens that are not JWTs, or carry no exp, pass: the media server has
// the final say.
func (c *Client) checkExpiry(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		c.logger.Debug("media token is not a parseable JWT, skipping expiry check", "error", err)
		return nil
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return nil
	}
	if !expiry.After(c.clock.Now()) {
		return fmt.Errorf("token service issued a token that expired at %s", expiry.UTC().Format(time.RFC3339))
	}
	return nil
}
