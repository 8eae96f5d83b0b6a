// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bureau-foundation/sms-bridge/lib/secret"
)

// Environment variable names.
const (
	EnvUserID          = "MATRIX_USER_ID"
	EnvPassword        = "MATRIX_PASSWORD"
	EnvPasswordFile    = "MATRIX_PASSWORD_FILE"
	EnvRoomAlias       = "MATRIX_ROOM_ID"
	EnvHomeserverURL   = "MATRIX_HOMESERVER_URL"
	EnvTwilioAuthToken = "TWILIO_AUTH_TOKEN"
	EnvConfigPath      = "BRIDGE_CONFIG"
)

// loadDotEnv loads path (default ".env") without overriding variables
// that are already set.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// readEnvironment fills Matrix and Twilio from the environment. Every
// missing variable is reported, not just the first.
func (c *Config) readEnvironment() []error {
	var missing []string
	var errs []error

	c.Matrix.UserID = strings.TrimSpace(os.Getenv(EnvUserID))
	if c.Matrix.UserID == "" {
		missing = append(missing, EnvUserID)
	}

	password, err := readPassword()
	switch {
	case err != nil:
		errs = append(errs, err)
	case password == nil:
		missing = append(missing, EnvPassword+" (or "+EnvPasswordFile+")")
	default:
		c.Matrix.Password = password
	}

	c.Matrix.RoomAlias = strings.TrimSpace(os.Getenv(EnvRoomAlias))
	if c.Matrix.RoomAlias == "" {
		missing = append(missing, EnvRoomAlias)
	}

	c.Matrix.HomeserverURL = strings.TrimSuffix(strings.TrimSpace(os.Getenv(EnvHomeserverURL)), "/")

	token, err := secret.TakeFromEnv(EnvTwilioAuthToken)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvTwilioAuthToken, err))
	}
	c.Twilio.AuthToken = token

	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))}, errs...)
	}
	return errs
}

// readPassword prefers MATRIX_PASSWORD_FILE over MATRIX_PASSWORD. The
// inline variable is unset either way. Returns (nil, nil) when neither
// is configured.
func readPassword() (*secret.Buffer, error) {
	inline, err := secret.TakeFromEnv(EnvPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvPassword, err)
	}

	path := strings.TrimSpace(os.Getenv(EnvPasswordFile))
	if path == "" {
		return inline, nil
	}
	if inline != nil {
		inline.Close()
	}
	buffer, err := secret.ReadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvPasswordFile, err)
	}
	return buffer, nil
}
