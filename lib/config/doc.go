// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge configuration.
//
// Credentials and the target room come from the environment and are
// required: MATRIX_USER_ID, MATRIX_PASSWORD (or MATRIX_PASSWORD_FILE),
// and MATRIX_ROOM_ID. A .env file in the working directory is loaded
// first when present; variables already set in the real environment
// take precedence over it. Secrets are moved into [secret.Buffer]
// values and removed from the process environment as they are read.
//
// Operational tuning (listen address, sync timeouts, logging) lives in
// an optional file named by --config or BRIDGE_CONFIG. The file is YAML,
// or JSONC when its extension is .json or .jsonc. Unknown keys are an
// error. String values may reference the environment with ${VAR} or
// ${VAR:-default}.
//
// [Load] returns a fully validated [Config]. [Config.Validate] reports
// every problem in one joined error rather than stopping at the first.
package config
