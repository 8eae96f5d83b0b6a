// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [RequireEventually] wrap the
// wait-with-timeout safety valve so tests that wait on goroutines do
// not each carry their own time.After. Backoff and other timing
// behavior under test is driven through lib/clock's fake clock instead.
//
// [UniqueID] generates monotonically increasing identifiers for
// transaction IDs and message bodies.
//
// [Logger] returns an slog.Logger that writes through t.Log, so log
// output appears next to the failing test and only on failure.
package testutil
