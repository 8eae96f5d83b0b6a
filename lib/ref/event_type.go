// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix event type ("m.room.message").
//
// EventType is a named string type, not a struct wrapper: event types
// are opaque identifiers that need no parsing. The type exists for
// compile-time safety, keeping event types apart from state keys and
// transaction IDs in request paths.
type EventType string

// EventTypeRoomMessage is the event type of every message the bridge
// sends.
const EventTypeRoomMessage EventType = "m.room.message"

// String returns the event type string.
func (t EventType) String() string { return string(t) }
