// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the long-running building blocks of the
// bridge process:
//
//   - [HTTPServer]: TCP listener lifecycle for the webhook ingestion
//     server, with a Ready channel and graceful drain on cancellation.
//   - [VerifyTwilioSignature]: X-Twilio-Signature validation for form
//     webhooks.
//   - [InitialSync] and [RunSyncLoop]: the Matrix /sync long-poll loop
//     with exponential backoff, a bound on consecutive transient
//     failures, and immediate exit when the access token is rejected.
//   - [AcceptInvites]: join rooms the account has been invited to.
//
// The bridge composes these in its own Run function. The package
// provides building blocks, not a runtime.
package service
