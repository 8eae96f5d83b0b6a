// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"github.com/bureau-foundation/sms-bridge/lib/ref"
)

// LoginRequest is the body of POST /_matrix/client/v3/login.
type LoginRequest struct {
	Type                     string         `json:"type"`
	Identifier               UserIdentifier `json:"identifier"`
	Password                 string         `json:"password"`
	InitialDeviceDisplayName string         `json:"initial_device_display_name,omitempty"`
}

// UserIdentifier identifies the account in a LoginRequest.
type UserIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse is returned by login.
type AuthResponse struct {
	UserID      ref.UserID `json:"user_id"`
	AccessToken string     `json:"access_token"`
	DeviceID    string     `json:"device_id"`
}

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

// NewTextMessage creates a plain m.text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{MsgType: "m.text", Body: body}
}

// Event is a Matrix event as it appears in sync timelines and state.
type Event struct {
	EventID  ref.EventID    `json:"event_id,omitempty"`
	Type     ref.EventType  `json:"type"`
	Sender   ref.UserID     `json:"sender,omitempty"`
	StateKey *string        `json:"state_key,omitempty"`
	Content  map[string]any `json:"content"`
}

// SyncOptions are the query parameters of GET /_matrix/client/v3/sync.
type SyncOptions struct {
	// Since is the next_batch token from the previous sync. Empty for
	// an initial sync.
	Since string

	// Timeout is the long-poll hold in milliseconds. Sent only when
	// SetTimeout is true, so that zero can mean "return immediately".
	Timeout    int
	SetTimeout bool

	// Filter is an inline JSON filter or a filter ID.
	Filter string
}

// SyncResponse is the subset of the sync response the bridge reads.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection groups per-room sync data by membership. Map keys are
// validated by ref.RoomID's TextUnmarshaler during decoding.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// InvitedRoom contains the stripped state of a room the user is invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom contains sync data for a room the user has left or been
// removed from.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection is a room's timeline slice in a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	Limited   bool    `json:"limited,omitempty"`
	PrevBatch string  `json:"prev_batch,omitempty"`
}

// StateSection is a list of state events.
type StateSection struct {
	Events []Event `json:"events"`
}

// SendEventResponse is returned by the send endpoint.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by GET /_matrix/client/v3/account/whoami.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// ResolveAliasResponse is returned by GET /_matrix/client/v3/directory/room/{alias}.
type ResolveAliasResponse struct {
	RoomID  ref.RoomID `json:"room_id"`
	Servers []string   `json:"servers"`
}

// JoinedRoomsResponse is returned by GET /_matrix/client/v3/joined_rooms.
type JoinedRoomsResponse struct {
	JoinedRooms []ref.RoomID `json:"joined_rooms"`
}

// WellKnownClient is the document at /.well-known/matrix/client.
type WellKnownClient struct {
	Homeserver struct {
		BaseURL string `json:"base_url"`
	} `json:"m.homeserver"`
}
