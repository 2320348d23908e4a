// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol adapts the Matrix client in package messaging into
// a stream of normalized events and a small set of typed commands.
//
// [Adapter.Start] authenticates (password login or stored-token
// resume), then runs a /sync long-poll loop on its own goroutine and
// delivers [Event] values on the returned channel. The loop emits
// room events for one sync response before the [SyncStateChanged]
// that follows it, so the first [PhasePrepared] arrives after the
// initial room state has been delivered.
//
// The adapter keeps no room state. [TranslateSync] is a pure function
// from one sync response to events: rooms in sorted ID order, and
// within a room state events before timeline events in server order.
//
// Every error returned from the adapter is a *clienterr.Error. Matrix
// errcodes and transport failures are classified here and nowhere
// else.
package protocol
