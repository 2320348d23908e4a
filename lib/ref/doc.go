// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated value types for the Matrix identifiers
// that cross the client core: room IDs, user IDs, event IDs and room
// aliases.
//
// Identifiers arrive from the homeserver (sync responses, room creation,
// alias resolution) or from user input (join targets, DM invitees) and
// are parsed into these types at that boundary. Everything past the
// boundary works with typed values, so a user ID can never be passed
// where a room ID is expected.
//
// All types are immutable and comparable, usable as map keys, and
// marshal to their canonical string form via encoding.TextMarshaler.
// The zero value of each type means "unset"; use IsZero to check.
package ref
