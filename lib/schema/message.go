// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"time"

	"github.com/dragon-chat/dragon/lib/ref"
)

// DeliveryState tracks a message from local send to server echo.
type DeliveryState int

const (
	// Pending: sent locally, echo not yet seen.
	Pending DeliveryState = iota
	// Sent: confirmed by the server. Terminal.
	Sent
	// Failed: the send errored or the echo timed out. Only a user
	// retry moves it back to Pending.
	Failed
)

func (s DeliveryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is one timeline entry.
type Message struct {
	// ID is the server event ID once known. Locally sent messages carry
	// their correlation ID here until the echo arrives.
	ID string

	// CorrelationID is the transaction ID used to send the message.
	// Empty for messages from other clients.
	CorrelationID string

	Sender        ref.UserID
	Body          string
	FormattedBody string
	Timestamp     time.Time
	State         DeliveryState
}

// IsLocal reports whether this client sent the message.
func (m Message) IsLocal() bool { return m.CorrelationID != "" }
