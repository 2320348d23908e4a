// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package media adapts a pion/webrtc peer connection to an SFU into
// the client's media session events.
//
// [Adapter.Connect] performs WHIP-style signaling: the SDP offer is
// POSTed to {mediaURL}/rtc/whip with the call token as a Bearer
// credential and the response body is the SDP answer. The connection
// counts as established once the reliable "control" data channel
// opens. The SFU uses that channel to announce participants and track
// state as CBOR-encoded [ControlMessage] values; the client uses it to
// announce its own track changes.
//
// Every [Event] carries the epoch it was connected under. The adapter
// does not interpret epochs; consumers compare them against their own
// generation counter to drop events from torn-down sessions.
//
// The adapter knows nothing about rooms. Local media comes from a
// [Source]; [SilentSource] keeps the session valid on machines without
// capture devices.
package media
