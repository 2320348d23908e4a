// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clienterr is the error taxonomy of the client core. Adapters
// translate transport and server failures into these kinds at their
// boundary; the engine and the presentation layer decide what to do by
// Kind, never by parsing message text.
package clienterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	// Auth: credentials were rejected. Fatal to the attempt; the user
	// may retry with different credentials.
	Auth Kind = "auth"

	// Network: transient transport or server failure, including rate
	// limiting. The caller may retry.
	Network Kind = "network"

	// Validation: local command misuse. Never reaches the network.
	Validation Kind = "validation"

	// AlreadyInCall: a call command arrived while a call is live.
	AlreadyInCall Kind = "already_in_call"

	// NoActiveCall: a call command needs a live call and there is none.
	NoActiveCall Kind = "no_active_call"

	// SendTimeout: a sent message's echo was not observed in time.
	SendTimeout Kind = "send_timeout"

	// Connect: the media session could not be established (token
	// service or media server failure).
	Connect Kind = "connect"
)

// Error is a classified error. Err carries the human-readable detail
// and the original cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so
// errors.Is(err, &Error{Kind: clienterr.Auth}) works through wrapping.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Err == nil && other.Kind == e.Kind
}

// New builds an Error of the given kind around a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil. An err that
// is already classified keeps its kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if op == "" {
			return err
		}
		return &Error{Kind: existing.Kind, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Local validation failures. Each is a Validation-kind error.
var (
	ErrEmptyMessage      = &Error{Kind: Validation, Err: errors.New("message body is empty")}
	ErrNoRoomSelected    = &Error{Kind: Validation, Err: errors.New("no room selected")}
	ErrTimelineNotLoaded = &Error{Kind: Validation, Err: errors.New("room timeline is not loaded yet")}
	ErrNotLoggedIn       = &Error{Kind: Validation, Err: errors.New("not logged in")}
	ErrAlreadyLoggedIn   = &Error{Kind: Validation, Err: errors.New("already logged in")}
)
