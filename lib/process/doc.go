// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers for the bridge binary:
// the shutdown-signal context and the pre-logger fatal error report.
//
// These are the only places outside lib/version that write to stderr
// directly. Everything after logger construction goes through slog.
package process
