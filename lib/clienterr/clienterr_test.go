// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clienterr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(Auth, "login", "invalid password for %s", "@alice:example.org")
	wrapped := fmt.Errorf("engine: %w", inner)

	if KindOf(wrapped) != Auth {
		t.Errorf("KindOf = %q, want auth", KindOf(wrapped))
	}
	if !Is(wrapped, Auth) || Is(wrapped, Network) {
		t.Errorf("Is() mismatch for %v", wrapped)
	}
	if !errors.Is(wrapped, &Error{Kind: Auth}) {
		t.Error("errors.Is did not match by kind")
	}
	if wrapped.Error() != "engine: login: invalid password for @alice:example.org" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	original := New(Validation, "", "bad alias")
	rewrapped := Wrap(Network, "join", original)
	if KindOf(rewrapped) != Validation {
		t.Errorf("KindOf = %q, want validation", KindOf(rewrapped))
	}
	if Wrap(Network, "join", nil) != nil {
		t.Error("Wrap(nil) is not nil")
	}
	plain := Wrap(Network, "sync", errors.New("connection reset"))
	if KindOf(plain) != Network {
		t.Errorf("KindOf(plain) = %q, want network", KindOf(plain))
	}
}

func TestSentinels(t *testing.T) {
	for _, sentinel := range []error{ErrEmptyMessage, ErrNoRoomSelected, ErrTimelineNotLoaded, ErrNotLoggedIn} {
		if !Is(sentinel, Validation) {
			t.Errorf("%v is not a validation error", sentinel)
		}
		if !errors.Is(fmt.Errorf("send: %w", sentinel), sentinel) {
			t.Errorf("errors.Is lost %v through wrapping", sentinel)
		}
	}
	if errors.Is(ErrEmptyMessage, ErrNoRoomSelected) {
		t.Error("distinct sentinels compare equal")
	}
}
