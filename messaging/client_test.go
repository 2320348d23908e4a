// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/secret"
)

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}

func writeMatrixError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"errcode": code, "error": message})
}

func assertAuth(t *testing.T, request *http.Request, token string) {
	t.Helper()
	if got := request.Header.Get("Authorization"); got != "Bearer "+token {
		t.Errorf("Authorization = %q, want %q", got, "Bearer "+token)
	}
}

func testPassword(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("secret.NewFromString: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestNewClientValidation(t *testing.T) {
	for _, homeserver := range []string{"", "ftp://example.org", "http://", "://bad"} {
		if _, err := NewClient(ClientConfig{HomeserverURL: homeserver}); err == nil {
			t.Errorf("NewClient(%q) succeeded, want error", homeserver)
		}
	}

	client, err := NewClient(ClientConfig{HomeserverURL: "https://matrix.example.org/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.BaseURL() != "https://matrix.example.org" {
		t.Errorf("BaseURL = %q", client.BaseURL())
	}
	if client.Host() != "matrix.example.org" {
		t.Errorf("Host = %q", client.Host())
	}
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/login" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if request.Header.Get("Authorization") != "" {
			t.Error("login must not send an Authorization header")
		}
		if !strings.HasPrefix(request.Header.Get("User-Agent"), "dragon/") {
			t.Errorf("User-Agent = %q", request.Header.Get("User-Agent"))
		}
		var body LoginRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Type != "m.login.password" || body.Identifier == nil || body.Identifier.User != "alice" {
			t.Errorf("unexpected login body: %+v", body)
		}
		if body.Password != "hunter2" {
			writeMatrixError(writer, http.StatusForbidden, ErrCodeForbidden, "Invalid password")
			return
		}
		writeJSON(writer, AuthResponse{
			UserID:      ref.MustParseUserID("@alice:example.org"),
			AccessToken: "syt_token",
			DeviceID:    "DEV1",
		})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		session, err := client.Login(context.Background(), "alice", testPassword(t, "hunter2"))
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		defer session.Close()
		if session.UserID().String() != "@alice:example.org" {
			t.Errorf("UserID = %s", session.UserID())
		}
		if session.DeviceID() != "DEV1" {
			t.Errorf("DeviceID = %s", session.DeviceID())
		}
		if session.AccessToken() != "syt_token" {
			t.Errorf("AccessToken = %q", session.AccessToken())
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.Login(context.Background(), "alice", testPassword(t, "wrong"))
		if err == nil {
			t.Fatal("Login succeeded with wrong password")
		}
		if !IsMatrixError(err, ErrCodeForbidden) {
			t.Errorf("error = %v, want M_FORBIDDEN", err)
		}
		if !IsAuthFailure(err) {
			t.Error("IsAuthFailure = false for M_FORBIDDEN")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if _, err := client.Login(context.Background(), "", testPassword(t, "x")); err == nil {
			t.Error("Login with empty username succeeded")
		}
		if _, err := client.Login(context.Background(), "alice", nil); err == nil {
			t.Error("Login with nil password succeeded")
		}
	})
}

func TestNonJSONErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		writer.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID("@alice:example.org"), "tok")
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	defer session.Close()

	_, err = session.WhoAmI(context.Background())
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("error = %v, want *MatrixError", err)
	}
	if matrixErr.StatusCode != http.StatusBadGateway || matrixErr.Code != ErrCodeUnknown {
		t.Errorf("got %+v", matrixErr)
	}
	if !strings.Contains(matrixErr.Message, "bad gateway") {
		t.Errorf("Message = %q", matrixErr.Message)
	}
	if !IsServerFailure(err) {
		t.Error("IsServerFailure = false for 502")
	}
	if IsAuthFailure(err) {
		t.Error("IsAuthFailure = true for 502")
	}
}

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&MatrixError{Code: ErrCodeUnknownToken, StatusCode: 401}, true},
		{&MatrixError{Code: ErrCodeUnknown, StatusCode: 401}, true},
		{&MatrixError{Code: ErrCodeForbidden, StatusCode: 403}, true},
		{&MatrixError{Code: ErrCodeLimitExceeded, StatusCode: 429}, false},
		{errors.New("dial tcp: connection refused"), false},
	}
	for _, test := range tests {
		if got := IsAuthFailure(test.err); got != test.want {
			t.Errorf("IsAuthFailure(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}
