// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"strconv"
	"sync/atomic"
)

var sequence atomic.Uint64

// UniqueID returns prefix followed by a dash and a process-wide sequence
// number. Tests use it for SMS bodies that must be told apart in a
// shared fake room, and for event IDs minted by a fake homeserver.
//
//	body := testutil.UniqueID("pickup at 5")  // "pickup at 5-1"
//	eventID := testutil.UniqueID("$event")    // "$event-2"
func UniqueID(prefix string) string {
	return prefix + "-" + strconv.FormatUint(sequence.Add(1), 10)
}
