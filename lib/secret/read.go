// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// ReadFromPath reads a secret from a file path, or from the first line
// of stdin if path is "-". Leading and trailing whitespace is trimmed.
// Returns an error if nothing remains after trimming.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret at %s is empty", path)
	}

	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// TakeFromEnv moves the named environment variable into a Buffer and
// unsets it, so child processes and /proc/self/environ readers no longer
// see it. Returns (nil, nil) when the variable is unset or blank.
func TakeFromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, nil
	}
	if err := os.Unsetenv(name); err != nil {
		return nil, fmt.Errorf("unsetting %s: %w", name, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	return NewFromString(value)
}
