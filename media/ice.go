// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import "github.com/pion/webrtc/v4"

// ICEConfig holds ICE server configuration for the peer connection.
// The engine refreshes it from the homeserver's TURN endpoint before
// each call so the HMAC credentials are current.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. Order matters: pion tries them in sequence.
	Servers []webrtc.ICEServer
}

// ICEConfigFromTURN builds an ICEConfig from TURN credentials. With no
// URIs (homeserver has no TURN configured) it returns a config with
// only host candidates, which is enough on the same LAN.
func ICEConfigFromTURN(uris []string, username, password string) ICEConfig {
	if len(uris) == 0 {
		return ICEConfig{}
	}
	return ICEConfig{
		Servers: []webrtc.ICEServer{
			{
				URLs:       uris,
				Username:   username,
				Credential: password,
			},
		},
	}
}
