// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a small Matrix client-server API client for a
// bot account that posts into rooms.
//
// [Client] is unauthenticated: it holds the homeserver URL and HTTP
// transport and performs password login. [DiscoverHomeserver] finds the
// homeserver URL for a server name through .well-known/matrix/client.
// A successful [Client.Login] returns a [DirectSession], which carries
// the access token in a secret.Buffer and performs authenticated calls:
// whoami, alias resolution, message send, join, joined rooms, sync, and
// logout. [Session] is the interface over those calls.
//
// [RoomCache] is the set of rooms the account has joined, maintained
// from sync responses and read concurrently by senders. A [Room] handle
// obtained from the cache sends messages into that room.
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code and HTTP status. [IsMatrixError] tests for a specific code;
// [IsTokenRejected] recognizes the responses that mean the access token
// is no longer usable. Request URLs are built by string concatenation
// with url.PathEscape on each path segment, so aliases containing
// slashes survive intact.
package messaging
