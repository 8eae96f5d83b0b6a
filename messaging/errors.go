// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
	"net/http"
)

// MatrixError is a structured error response from the homeserver.
// Callers extract it with errors.As:
//
//	var matrixErr *MatrixError
//	if errors.As(err, &matrixErr) {
//	    if matrixErr.Code == ErrCodeNotFound { ... }
//	}
//
// A non-JSON error body yields a MatrixError with an empty Code and the
// raw body as Message.
type MatrixError struct {
	// Code is the Matrix error code (e.g., "M_FORBIDDEN", "M_UNKNOWN_TOKEN").
	Code string `json:"errcode"`
	// Message is the human-readable error description from the server.
	Message string `json:"error"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("matrix: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Standard Matrix error codes.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
	ErrCodeInvalidParam  = "M_INVALID_PARAM"
)

// IsMatrixError checks whether err is a *MatrixError with the given error code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// IsTokenRejected reports whether err means the homeserver refuses the
// session's access token: M_UNKNOWN_TOKEN, M_FORBIDDEN, or any HTTP 401.
// Retrying such a request with the same token cannot succeed.
func IsTokenRejected(err error) bool {
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		return false
	}
	switch {
	case matrixErr.Code == ErrCodeUnknownToken, matrixErr.Code == ErrCodeForbidden:
		return true
	case matrixErr.StatusCode == http.StatusUnauthorized:
		return true
	}
	return false
}
