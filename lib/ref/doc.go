// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable Matrix identifiers.
//
// The bridge handles four kinds of Matrix identifier: the bot's user ID
// (@localpart:server), the configured room alias (#localpart:server),
// the room ID the alias resolves to (!opaque:server), and event IDs
// returned by sends ($opaque). Each is a struct wrapping the raw string
// so that a room alias can never be passed where a room ID is expected.
//
// Identifiers are validated once, at the boundary where they enter the
// process (configuration, HTTP form input, homeserver responses), and
// passed through as typed values afterwards. The zero value of every
// type is the "unset" identifier; use IsZero to check.
//
// JSON marshaling uses the full Matrix string via
// encoding.TextMarshaler, so typed identifiers can be used directly in
// request and response structs and as map keys.
package ref
