// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dragon-chat/dragon/lib/clienterr"
)

func TestExitCode(t *testing.T) {
	for _, test := range []struct {
		name string
		err  error
		want int
	}{
		{"validation", clienterr.ErrNotLoggedIn, ExitUsage},
		{"auth", clienterr.New(clienterr.Auth, "login", "bad password"), ExitAuth},
		{"network", clienterr.New(clienterr.Network, "sync", "unreachable"), ExitConnection},
		{"connect", clienterr.New(clienterr.Connect, "request media token", "HTTP 502"), ExitConnection},
		{"wrapped", fmt.Errorf("rooms: %w", clienterr.New(clienterr.Auth, "resume", "revoked")), ExitAuth},
		{"plain", errors.New("disk full"), ExitFailure},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := ExitCode(test.err); got != test.want {
				t.Errorf("ExitCode(%v) = %d, want %d", test.err, got, test.want)
			}
		})
	}
}
