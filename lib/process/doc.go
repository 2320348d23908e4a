// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the dragon binaries:
// reporting the error that ended run() and choosing the exit status
// from its clienterr kind. It writes to stderr directly because the
// structured logger may not exist yet, or may be writing to a file the
// user is not looking at.
package process
