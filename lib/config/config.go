// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/sms-bridge/lib/ref"
	"github.com/bureau-foundation/sms-bridge/lib/secret"
)

// Config is the complete bridge configuration.
type Config struct {
	// Matrix holds the bot credentials and the target room.
	Matrix MatrixConfig

	// Twilio holds the optional webhook signing key.
	Twilio TwilioConfig

	// Tuning holds the operational settings from the config file.
	Tuning Tuning
}

// MatrixConfig is immutable after Load and never reloaded.
type MatrixConfig struct {
	// UserID is the bot account, e.g. "@bot:example.org". Validated as
	// a server-qualified user ID at load time.
	UserID string

	// Password is the bot account password.
	Password *secret.Buffer

	// RoomAlias is the configured target room, e.g. "#relay:example.org".
	// Kept as the raw string: parsing happens on each delivery.
	RoomAlias string

	// HomeserverURL skips .well-known discovery when set.
	HomeserverURL string
}

// TwilioConfig configures webhook signature verification.
type TwilioConfig struct {
	// AuthToken is the Twilio account auth token. Nil disables
	// signature verification.
	AuthToken *secret.Buffer
}

// Tuning is the schema of the optional config file.
type Tuning struct {
	// ListenAddress is the ingestion server bind address.
	ListenAddress string `yaml:"listen_address"`

	// WebhookURL is the public URL Twilio posts to. Twilio signs this
	// exact string, so it must match what is configured in the Twilio
	// console, including scheme and any query string.
	WebhookURL string `yaml:"webhook_url"`

	// AcceptInvites makes the bot join rooms it is invited to.
	AcceptInvites bool `yaml:"accept_invites"`

	Sync SyncTuning `yaml:"sync"`

	// ShutdownTimeout bounds HTTP drain and logout on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Log LogTuning `yaml:"log"`
}

// SyncTuning configures the long-poll loop.
type SyncTuning struct {
	// Timeout is the server-side long-poll hold in milliseconds.
	Timeout int `yaml:"timeout"`

	// MaxBackoff caps the exponential retry delay.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxConsecutiveFailures ends the sync loop after this many
	// transient failures in a row.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// LogTuning configures the process logger.
type LogTuning struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of auto, text, json.
	Format string `yaml:"format"`
}

// DefaultTuning returns the settings used when no config file is given
// and the base that a config file is merged onto.
func DefaultTuning() Tuning {
	return Tuning{
		ListenAddress: "0.0.0.0:9090",
		Sync: SyncTuning{
			Timeout:                30000,
			MaxBackoff:             30 * time.Second,
			MaxConsecutiveFailures: 10,
		},
		ShutdownTimeout: 10 * time.Second,
		Log: LogTuning{
			Level:  "info",
			Format: "auto",
		},
	}
}

// LogLevel returns the parsed log level. Validate guarantees it parses.
func (t Tuning) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(t.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Options controls where Load looks for its inputs.
type Options struct {
	// ConfigPath overrides BRIDGE_CONFIG.
	ConfigPath string

	// DotEnvPath is the .env file to load. Empty means ".env" in the
	// working directory. A missing file is not an error.
	DotEnvPath string
}

// Load reads the environment and the optional tuning file and returns a
// validated Config. The caller must Close the returned Config.
func Load(options Options) (*Config, error) {
	if err := loadDotEnv(options.DotEnvPath); err != nil {
		return nil, err
	}

	cfg := &Config{Tuning: DefaultTuning()}

	envErrs := cfg.readEnvironment()

	configPath := options.ConfigPath
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath != "" {
		if err := cfg.Tuning.loadFile(configPath); err != nil {
			cfg.Close()
			return nil, fmt.Errorf("loading %s: %w", configPath, err)
		}
	}

	if err := errors.Join(append(envErrs, cfg.Validate())...); err != nil {
		cfg.Close()
		return nil, err
	}
	return cfg, nil
}

// LoadTuningFile reads a tuning file on top of DefaultTuning.
func LoadTuningFile(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if err := tuning.loadFile(path); err != nil {
		return Tuning{}, err
	}
	return tuning, nil
}

func (t *Tuning) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// YAML is a superset of JSON, so JSONC only needs its comments and
	// trailing commas stripped to share the YAML decoder.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	t.ListenAddress = expandVars(t.ListenAddress)
	t.WebhookURL = expandVars(t.WebhookURL)
	return nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Matrix.UserID != "" {
		if _, err := ref.ParseUserID(c.Matrix.UserID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvUserID, err))
		}
	}
	if c.Matrix.HomeserverURL != "" {
		if err := validateAbsoluteURL(c.Matrix.HomeserverURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvHomeserverURL, err))
		}
	}

	tuning := c.Tuning
	if tuning.ListenAddress == "" {
		errs = append(errs, fmt.Errorf("listen_address is required"))
	}
	if tuning.WebhookURL != "" {
		if err := validateAbsoluteURL(tuning.WebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("webhook_url: %w", err))
		}
	}
	if c.Twilio.AuthToken != nil && tuning.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("webhook_url is required when %s is set", EnvTwilioAuthToken))
	}
	if tuning.Sync.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must be positive, got %d", tuning.Sync.Timeout))
	}
	if tuning.Sync.MaxBackoff < time.Second {
		errs = append(errs, fmt.Errorf("sync.max_backoff must be at least 1s, got %s", tuning.Sync.MaxBackoff))
	}
	if tuning.Sync.MaxConsecutiveFailures <= 0 {
		errs = append(errs, fmt.Errorf("sync.max_consecutive_failures must be positive, got %d", tuning.Sync.MaxConsecutiveFailures))
	}
	if tuning.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", tuning.ShutdownTimeout))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(tuning.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	formats := []string{"auto", "text", "json"}
	if !contains(formats, tuning.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

// Close releases the secret buffers. Safe to call more than once.
func (c *Config) Close() {
	if c.Matrix.Password != nil {
		c.Matrix.Password.Close()
	}
	if c.Twilio.AuthToken != nil {
		c.Twilio.AuthToken.Close()
	}
}

func validateAbsoluteURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
