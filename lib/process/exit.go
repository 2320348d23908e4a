// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"

	"github.com/dragon-chat/dragon/lib/clienterr"
)

// Exit statuses.
const (
	ExitFailure    = 1
	ExitUsage      = 2
	ExitAuth       = 3
	ExitConnection = 4
)

// ExitCode maps an error to an exit status: usage and validation
// problems are ExitUsage, rejected credentials ExitAuth, an unreachable
// server or media service ExitConnection, anything else ExitFailure.
func ExitCode(err error) int {
	switch clienterr.KindOf(err) {
	case clienterr.Validation:
		return ExitUsage
	case clienterr.Auth:
		return ExitAuth
	case clienterr.Network, clienterr.Connect:
		return ExitConnection
	default:
		return ExitFailure
	}
}

// Fatal writes "error: err" to stderr and exits with ExitCode(err).
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitCode(err))
}
