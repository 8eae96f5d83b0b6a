// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/bureau-foundation/sms-bridge/lib/ref"
)

// Session is the set of authenticated operations the bridge performs.
// *DirectSession is the production implementation.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID.
	UserID() ref.UserID

	// Close releases resources held by the session. Idempotent.
	Close() error

	// WhoAmI validates the session and returns the user ID.
	WhoAmI(ctx context.Context) (ref.UserID, error)

	// ResolveAlias resolves a room alias to a room ID.
	ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)

	// SendMessage sends an m.room.message event. Returns the event ID.
	SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error)

	// JoinRoom joins a room by room ID.
	JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)

	// JoinedRooms returns the room IDs the user has joined.
	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)

	// Sync performs one sync request.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// Logout invalidates the access token on the homeserver.
	Logout(ctx context.Context) error
}

// Compile-time check: *DirectSession implements Session.
var _ Session = (*DirectSession)(nil)
