// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process logger.
//
// With format "auto" the handler follows the destination: a terminal
// gets slog.TextHandler for people, anything else (systemd, containers,
// log shippers) gets slog.JSONHandler. Components receive the logger
// through their config structs and scope it with With().
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Format selects the slog handler.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatAuto, FormatText, FormatJSON:
		return Format(raw), nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want auto, text, or json)", raw)
	}
}

// New returns a logger writing to w at level. For FormatAuto, w is
// treated as a terminal when it is an *os.File attached to one.
func New(w io.Writer, level slog.Leveler, format Format) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if format == FormatAuto {
		format = FormatJSON
		if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = FormatText
		}
	}

	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}
