// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge relays Twilio inbound SMS webhooks into a Matrix room.
//
// A process runs two long-lived tasks under [Supervise]:
//
//   - "session": [SessionManager] logs in once as the bot account, then
//     keeps a /sync long-poll running. Sync responses maintain the
//     joined-room cache. The session is ready (see
//     [SessionManager.IsReady]) only while the sync loop is running.
//   - "http": the ingestion server built by [NewHandler] serves the
//     health probes, the Twilio webhook, and Prometheus metrics.
//
// Each webhook is decoded into an [InboundMessage] and handed to the
// [Deliverer], which parses the configured room alias, resolves it on
// the homeserver, looks the room up in the session's cache, and sends
// the formatted message. Each failure stage has its own [FailureKind].
// Deliveries are not retried or queued: a failure is logged, counted,
// and answered with HTTP 500 so that Twilio's own retry policy applies.
//
// The tasks fail together. If either returns, for any reason, the other
// is cancelled and [Bridge.Run] reports which task ended the process
// as a [*TaskExitError]. A partially alive process (serving webhooks
// with a dead session, or syncing with no listener) never persists.
package bridge
