// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credentials (the Matrix account password, the
// session access token, the Twilio auth token) in memory that is
// locked against swap and excluded from core dumps.
//
// [Buffer] allocates its backing store with mmap(MAP_ANONYMOUS) outside
// the Go heap, so the garbage collector never copies it. Close zeroes,
// unlocks, and unmaps the region; any access after Close panics.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer of a given size
//   - [NewFromBytes] copies into protected memory and zeroes the source
//   - [NewFromString] copies a string (the string itself cannot be wiped)
//   - [ReadFromPath] reads a file or stdin, trimming whitespace
//   - [TakeFromEnv] reads an environment variable and unsets it
package secret
