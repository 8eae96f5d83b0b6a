// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sms-bridge/lib/clock"
	"github.com/bureau-foundation/sms-bridge/lib/ref"
	"github.com/bureau-foundation/sms-bridge/messaging"
)

// Sync loop termination causes. RunSyncLoop wraps one of these around
// the last sync error, so callers can branch with errors.Is and still
// reach the underlying *messaging.MatrixError with errors.As.
var (
	// ErrTokenRejected means the homeserver refused the access token
	// (M_UNKNOWN_TOKEN, M_FORBIDDEN, or HTTP 401).
	ErrTokenRejected = errors.New("access token rejected by homeserver")

	// ErrRetriesExhausted means MaxConsecutiveFailures transient
	// errors occurred without an intervening success.
	ErrRetriesExhausted = errors.New("sync retries exhausted")
)

// Syncer performs one /sync request. *messaging.DirectSession
// implements it.
type Syncer interface {
	Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error)
}

// SyncConfig configures the Matrix /sync long-poll loop.
type SyncConfig struct {
	// Filter is the inline JSON filter restricting which events the
	// homeserver returns.
	Filter string

	// Timeout is the long-poll timeout in milliseconds. Default: 30000.
	Timeout int

	// MaxBackoff caps the exponential retry delay, which starts at one
	// second. Default: 30 seconds.
	MaxBackoff time.Duration

	// MaxConsecutiveFailures is the number of transient failures in a
	// row after which the loop gives up. Default: 10.
	MaxConsecutiveFailures int

	// OnFailure, if set, is called for every failed sync attempt,
	// before the loop decides whether to retry.
	OnFailure func(err error)
}

// SyncHandler is called for each /sync response. The next poll starts
// after the handler returns.
type SyncHandler func(ctx context.Context, response *messaging.SyncResponse)

// InitialSync performs the first /sync with no since token to obtain a
// full snapshot. It returns immediately rather than long-polling.
// Returns the next_batch token and the response.
func InitialSync(ctx context.Context, syncer Syncer, filter string) (string, *messaging.SyncResponse, error) {
	response, err := syncer.Sync(ctx, messaging.SyncOptions{Filter: filter})
	if err != nil {
		return "", nil, fmt.Errorf("initial sync: %w", err)
	}
	return response.NextBatch, response, nil
}

// RunSyncLoop runs the incremental /sync long-poll loop from sinceToken,
// calling handler for each response, until one of:
//
//   - ctx is cancelled: returns nil.
//   - the homeserver rejects the access token: returns an error
//     wrapping ErrTokenRejected, without retrying.
//   - MaxConsecutiveFailures transient errors in a row: returns an
//     error wrapping ErrRetriesExhausted.
//
// Between transient failures the loop waits on clk with exponential
// backoff (1s doubling to MaxBackoff). A successful sync resets both
// the backoff and the failure count.
func RunSyncLoop(ctx context.Context, syncer Syncer, config SyncConfig, sinceToken string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) error {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30000
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}
	maxFailures := config.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 10
	}

	backoff := time.Second
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		response, err := syncer.Sync(ctx, messaging.SyncOptions{
			Since:      sinceToken,
			Timeout:    timeout,
			SetTimeout: true,
			Filter:     config.Filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if config.OnFailure != nil {
				config.OnFailure(err)
			}
			if messaging.IsTokenRejected(err) {
				logger.Error("sync rejected, giving up", "error", err)
				return fmt.Errorf("%w: %w", ErrTokenRejected, err)
			}

			failures++
			if failures >= maxFailures {
				logger.Error("sync failed too many times, giving up",
					"error", err,
					"consecutive_failures", failures,
				)
				return fmt.Errorf("%w after %d consecutive failures: %w", ErrRetriesExhausted, failures, err)
			}

			logger.Warn("sync failed, retrying",
				"error", err,
				"backoff", backoff,
				"consecutive_failures", failures,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-clk.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		failures = 0
		sinceToken = response.NextBatch

		handler(ctx, response)
	}
}

// RoomJoiner joins rooms by ID. *messaging.DirectSession implements it.
type RoomJoiner interface {
	JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error)
}

// AcceptInvites joins every room in invites and returns the room IDs
// that were joined. Join failures are logged and skipped; an invite
// that cannot be accepted is not a reason to stop syncing.
func AcceptInvites(ctx context.Context, joiner RoomJoiner, invites map[ref.RoomID]messaging.InvitedRoom, logger *slog.Logger) []ref.RoomID {
	var accepted []ref.RoomID
	for roomID := range invites {
		logger.Info("accepting room invite", "room_id", roomID)
		if _, err := joiner.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to accept room invite",
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		accepted = append(accepted, roomID)
	}
	return accepted
}
