// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP body reads for the Matrix client.
//
// Every homeserver response body goes through [ReadResponse],
// [DecodeResponse], or [ErrorBody], which stop reading at
// [MaxResponseSize]. A misbehaving homeserver cannot make the bridge
// allocate without limit.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds homeserver JSON responses. Initial sync
// responses for a bot account in a handful of rooms are a few hundred
// kilobytes at most.
const MaxResponseSize int64 = 64 << 20

// MaxErrorBodySize bounds how much of an error response is carried into
// an error message.
const MaxErrorBodySize int64 = 4 << 10

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a response body up to MaxResponseSize bytes and
// JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody returns up to MaxErrorBodySize bytes of an error response
// for diagnostics. Read errors yield whatever was read before them.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
	return string(data)
}
