// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, slog.LevelInfo, FormatJSON)
	logger.Info("delivered", "room_id", "!r:example.org")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buffer.String())
	}
	if record["msg"] != "delivered" || record["room_id"] != "!r:example.org" {
		t.Errorf("record = %v", record)
	}
}

func TestNewAutoOnNonTerminalIsJSON(t *testing.T) {
	var buffer bytes.Buffer
	New(&buffer, slog.LevelInfo, FormatAuto).Info("hello")
	if !strings.HasPrefix(buffer.String(), "{") {
		t.Errorf("auto format on a buffer = %q, want JSON", buffer.String())
	}
}

func TestNewTextRespectsLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, slog.LevelWarn, FormatText)
	logger.Info("dropped")
	logger.Warn("kept")

	output := buffer.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("info record written at warn level: %q", output)
	}
	if !strings.Contains(output, "msg=kept") {
		t.Errorf("warn record missing or not text format: %q", output)
	}
}

func TestParseFormat(t *testing.T) {
	for _, raw := range []string{"auto", "text", "json"} {
		if got, err := ParseFormat(raw); err != nil || string(got) != raw {
			t.Errorf("ParseFormat(%q) = %q, %v", raw, got, err)
		}
	}
	if got, err := ParseFormat(""); err != nil || got != FormatAuto {
		t.Errorf("ParseFormat(\"\") = %q, %v, want auto", got, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(\"xml\") succeeded, want error")
	}
}
