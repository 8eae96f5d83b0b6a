// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that retry
// backoff in the sync loop can be tested without sleeping.
//
// Production code holds a [Clock] and calls Now and After on it
// instead of the time package. [Real] delegates to the time package.
// [Fake] returns a [FakeClock] whose time moves only when Advance is
// called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop(ctx, fake)
//	fake.WaitForTimers(1)       // the loop is now sleeping in backoff
//	fake.Advance(2 * time.Second)
package clock

import "time"

// Clock is the subset of the time package used by the bridge.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time
}
