// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for messages on the media
// session's control data channel. JSON stays the format for everything
// that talks to the homeserver or the token service; the control
// channel carries small binary frames where CBOR's compactness and
// deterministic encoding matter.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so equal
// values produce equal bytes and frames can be compared directly in
// tests. Decoding ignores unknown fields so older clients accept frames
// from newer servers.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// maxFrameItems bounds array and map sizes in a decoded frame. Control
// frames describe one participant or track at a time.
const maxFrameItems = 1024

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	options := cbor.CoreDetEncOptions()
	// ref.UserID and friends encode as text strings via MarshalText
	// instead of empty maps of unexported fields.
	options.TextMarshaler = cbor.TextMarshalerTextString
	var err error
	encMode, err = options.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler:  cbor.TextUnmarshalerTextString,
		MaxArrayElements: maxFrameItems,
		MaxMapPairs:      maxFrameItems,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes one CBOR frame into v. Trailing bytes are an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders a frame in CBOR diagnostic notation for debug logs.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
