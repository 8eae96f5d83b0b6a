// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/sms-bridge/lib/ref"
	"github.com/bureau-foundation/sms-bridge/messaging"
)

// FailureKind identifies the delivery stage that failed.
type FailureKind int

const (
	// FailureAliasParse: the configured alias is not a valid room alias.
	FailureAliasParse FailureKind = iota + 1

	// FailureAliasResolution: the homeserver could not resolve the alias.
	FailureAliasResolution

	// FailureRoomNotFound: the alias resolved to a room the bot has
	// not joined.
	FailureRoomNotFound

	// FailureSend: the homeserver rejected or failed the send.
	FailureSend
)

func (k FailureKind) String() string {
	switch k {
	case FailureAliasParse:
		return "alias_parse"
	case FailureAliasResolution:
		return "alias_resolution"
	case FailureRoomNotFound:
		return "room_not_found"
	case FailureSend:
		return "send"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// DeliveryError is returned by Deliver. RoomID is set for failures that
// happen after the alias resolved.
type DeliveryError struct {
	Kind   FailureKind
	Alias  string
	RoomID ref.RoomID
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.RoomID.IsZero() {
		return fmt.Sprintf("delivering to %s: %s: %v", e.Alias, e.Kind, e.Err)
	}
	return fmt.Sprintf("delivering to %s (%s): %s: %v", e.Alias, e.RoomID, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// RoomDirectory resolves aliases and hands out joined rooms.
// *SessionManager implements it.
type RoomDirectory interface {
	ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error)
	JoinedRoom(roomID ref.RoomID) (*messaging.Room, error)
}

var _ RoomDirectory = (*SessionManager)(nil)

// Deliverer turns inbound messages into room messages. Each call is
// independent: nothing is retried, queued, or cached between calls, so
// an alias that moves to another room takes effect on the next message.
type Deliverer struct {
	directory RoomDirectory
	logger    *slog.Logger
}

// NewDeliverer creates a Deliverer. Panics if directory or logger is nil.
func NewDeliverer(directory RoomDirectory, logger *slog.Logger) *Deliverer {
	if directory == nil {
		panic("bridge.NewDeliverer: directory is required")
	}
	if logger == nil {
		panic("bridge.NewDeliverer: logger is required")
	}
	return &Deliverer{directory: directory, logger: logger}
}

// Deliver posts message to the room named by alias. Returns a
// *DeliveryError on failure.
func (d *Deliverer) Deliver(ctx context.Context, alias string, message InboundMessage) error {
	roomAlias, err := ref.ParseRoomAlias(alias)
	if err != nil {
		return &DeliveryError{Kind: FailureAliasParse, Alias: alias, Err: err}
	}

	roomID, err := d.directory.ResolveAlias(ctx, roomAlias)
	if err != nil {
		return &DeliveryError{Kind: FailureAliasResolution, Alias: alias, Err: err}
	}

	room, err := d.directory.JoinedRoom(roomID)
	if err != nil {
		return &DeliveryError{Kind: FailureRoomNotFound, Alias: alias, RoomID: roomID, Err: err}
	}

	eventID, err := room.Send(ctx, message.Content())
	if err != nil {
		return &DeliveryError{Kind: FailureSend, Alias: alias, RoomID: roomID, Err: err}
	}

	d.logger.Info("delivered sms to matrix",
		"from", message.From,
		"to", message.To,
		"room_id", roomID,
		"event_id", eventID,
	)
	return nil
}
