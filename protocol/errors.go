// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"net/http"

	"github.com/dragon-chat/dragon/lib/clienterr"
	"github.com/dragon-chat/dragon/messaging"
)

// classify maps a messaging error onto the client error taxonomy.
// Rejected credentials are Auth, a missing alias or a refused request
// is Validation, and everything else (rate limits, 5xx, transport) is
// Network.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var matrixErr *messaging.MatrixError
	if !errors.As(err, &matrixErr) {
		return clienterr.Wrap(clienterr.Network, op, err)
	}
	switch {
	case matrixErr.Code == messaging.ErrCodeUnknownToken,
		matrixErr.Code == messaging.ErrCodeMissingToken,
		matrixErr.Code == messaging.ErrCodeUserDeactive,
		matrixErr.StatusCode == http.StatusUnauthorized:
		return clienterr.Wrap(clienterr.Auth, op, err)
	case messaging.IsServerFailure(err):
		return clienterr.Wrap(clienterr.Network, op, err)
	case matrixErr.Code == messaging.ErrCodeForbidden && (op == opLogin || op == opResume):
		return clienterr.Wrap(clienterr.Auth, op, err)
	case matrixErr.StatusCode >= 400 && matrixErr.StatusCode < 500:
		return clienterr.Wrap(clienterr.Validation, op, err)
	}
	return clienterr.Wrap(clienterr.Network, op, err)
}

const (
	opLogin      = "login"
	opResume     = "resume session"
	opSend       = "send message"
	opCreateRoom = "create room"
	opJoinRoom   = "join room"
	opLogout     = "logout"
	opTURN       = "turn credentials"
	opReceipt    = "read receipt"
	opSync       = "sync"
)
