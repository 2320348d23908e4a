// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dragon-chat/dragon/calltoken"
	"github.com/dragon-chat/dragon/lib/clock"
	"github.com/dragon-chat/dragon/lib/ref"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIssuer(clk clock.Clock) *tokenIssuer {
	return &tokenIssuer{
		apiKey: "devkey",
		secret: []byte("test-secret"),
		ttl:    time.Hour,
		clock:  clk,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func postToken(t *testing.T, issuer *tokenIssuer, body string) *http.Response {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, calltoken.TokenPath, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	response, err := newApp(issuer).Test(request, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	t.Cleanup(func() { response.Body.Close() })
	return response
}

func TestTokenIssued(t *testing.T) {
	fake := clock.Fake(epoch)
	issuer := newTestIssuer(fake)

	response := postToken(t, issuer, `{"roomName":"!abc:example.org","participantName":"@alice:example.org"}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.StatusCode)
	}
	var decoded calltoken.Response
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	claims := &mediaClaims{}
	_, err := jwt.ParseWithClaims(decoded.Token, claims,
		func(*jwt.Token) (any, error) { return issuer.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(fake.Now),
	)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != "@alice:example.org" {
		t.Errorf("sub = %q", claims.Subject)
	}
	if claims.Issuer != "devkey" {
		t.Errorf("iss = %q", claims.Issuer)
	}
	if claims.Video.Room != "!abc:example.org" || !claims.Video.RoomJoin || !claims.Video.CanPublish {
		t.Errorf("video grant = %+v", claims.Video)
	}
	if want := epoch.Add(time.Hour); !claims.ExpiresAt.Time.Equal(want) {
		t.Errorf("exp = %v, want %v", claims.ExpiresAt.Time, want)
	}
}

func TestTokenRequestValidation(t *testing.T) {
	issuer := newTestIssuer(clock.Fake(epoch))
	for _, test := range []struct {
		name string
		body string
	}{
		{"malformed", `{"roomName":`},
		{"missing room", `{"participantName":"@alice:example.org"}`},
		{"missing participant", `{"roomName":"!abc:example.org"}`},
	} {
		t.Run(test.name, func(t *testing.T) {
			response := postToken(t, issuer, test.body)
			if response.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", response.StatusCode)
			}
		})
	}
}

func TestCallTokenClientAgainstMock(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	app := newApp(newTestIssuer(clock.Real()))
	go app.Listener(listener)
	t.Cleanup(func() { app.Shutdown() })

	client, err := calltoken.New(calltoken.Config{ServiceURL: "http://" + listener.Addr().String()})
	if err != nil {
		t.Fatalf("calltoken.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := client.RequestMediaToken(ctx, ref.MustParseRoomID("!abc:example.org"), "@alice:example.org")
	if err != nil {
		t.Fatalf("RequestMediaToken: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a compact JWT", token)
	}
}
