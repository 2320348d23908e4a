// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Matrix event types the client reads from sync or writes.
const (
	EventTypeRoomMessage = "m.room.message"
	EventTypeRoomName    = "m.room.name"
	EventTypeRoomTopic   = "m.room.topic"
	EventTypeRoomMember  = "m.room.member"
	EventTypeRoomCreate  = "m.room.create"
)

// MsgTypeText is the only msgtype the client sends. Other msgtypes are
// received and displayed by their body.
const MsgTypeText = "m.text"

// FormatHTML is the Matrix "format" value accompanying formatted_body.
const FormatHTML = "org.matrix.custom.html"

// VoiceRoomType is written into m.room.create's "type" when the client
// creates a voice channel. Classification still follows the room name.
const VoiceRoomType = "dragon.voice"

// Room creation presets.
const (
	PresetPrivateChat        = "private_chat"
	PresetTrustedPrivateChat = "trusted_private_chat"
	PresetPublicChat         = "public_chat"
)
