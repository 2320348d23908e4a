// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a small Matrix client-server API client covering
// what a chat client needs: password login, token resume, /sync,
// room creation and joining, message sending with caller-chosen
// transaction IDs, read receipts, membership listing, TURN credentials
// and logout.
//
// [Client] is unauthenticated and holds the homeserver URL and HTTP
// transport. [Client.Login] and [Client.SessionFromToken] return a
// [Session] that carries the access token in a secret.Buffer. Call
// Session.Close to release it.
//
// Every server-side failure comes back as a [*MatrixError] carrying the
// Matrix errcode and HTTP status. Transport failures come back as the
// wrapped net/http error. Classifying either for the user is the
// caller's job.
//
// Request URLs are built by string concatenation with url.PathEscape
// on each path segment; room IDs and aliases contain characters ('!',
// '#', ':') that url.URL would otherwise re-encode inconsistently.
package messaging
