// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the application-level data model shared by the
// client core and its presentation layer: messages with their delivery
// state, room members, room kinds, and the media vocabulary of calls
// and tracks. It also names the Matrix event types the core consumes.
//
// Values here are plain data. Ownership and mutation rules live in the
// packages that hold them (directory for rooms, call for the active
// call); schema types cross package boundaries by value.
//
// This package depends only on lib/ref.
package schema
