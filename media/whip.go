// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dragon-chat/dragon/lib/netutil"
	"github.com/dragon-chat/dragon/lib/version"
)

// WHIPPath is appended to the media URL for signaling.
const WHIPPath = "/rtc/whip"

// signalingURL turns the configured media URL (usually wss://) into the
// HTTP endpoint accepting SDP offers.
func signalingURL(mediaURL string) (string, error) {
	parsed, err := url.Parse(mediaURL)
	if err != nil {
		return "", fmt.Errorf("invalid media URL %q: %w", mediaURL, err)
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("media URL %q must be ws, wss, http or https", mediaURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("media URL %q has no host", mediaURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + WHIPPath
	return parsed.String(), nil
}

// exchangeSDP posts the offer and returns the answer.
func exchangeSDP(ctx context.Context, client *http.Client, endpoint, token, offer string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(offer)))
	if err != nil {
		return "", fmt.Errorf("creating signaling request: %w", err)
	}
	request.Header.Set("Content-Type", "application/sdp")
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := client.Do(request)
	if err != nil {
		return "", fmt.Errorf("posting SDP offer: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("media server rejected offer: HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}
	answer, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return "", fmt.Errorf("reading SDP answer: %w", err)
	}
	if len(answer) == 0 {
		return "", fmt.Errorf("media server returned an empty SDP answer")
	}
	return string(answer), nil
}

// identityFromToken reads the participant identity from the call
// token's "sub" claim. The SFU verifies the token; the client only
// needs to know which participant is itself.
func identityFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parsing call token: %w", err)
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("call token subject: %w", err)
	}
	if subject == "" {
		return "", fmt.Errorf("call token has no subject")
	}
	return subject, nil
}
