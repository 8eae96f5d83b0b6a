// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// EventID is a Matrix event ID (e.g., "$abc123xyz"), returned by the
// homeserver when a message is sent. Event IDs are opaque: the only
// validation is the '$' sigil followed by at least one character.
type EventID struct {
	id string
}

// ParseEventID validates and wraps a raw Matrix event ID string.
func ParseEventID(raw string) (EventID, error) {
	if len(raw) < 2 || raw[0] != '$' {
		return EventID{}, fmt.Errorf("invalid event ID %q: must be '$' followed by an opaque identifier", raw)
	}
	return EventID{id: raw}, nil
}

// String returns the full event ID string.
func (e EventID) String() string { return e.id }

// IsZero reports whether the EventID is the zero value (uninitialized).
func (e EventID) IsZero() bool { return e.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MustParseEventID is like ParseEventID but panics on error. Use only
// for compile-time constants and test fixtures.
func MustParseEventID(raw string) EventID {
	eventID, err := ParseEventID(raw)
	if err != nil {
		panic(err)
	}
	return eventID
}
