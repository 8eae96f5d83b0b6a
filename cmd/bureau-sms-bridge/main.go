// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sms-bridge/bridge"
	"github.com/bureau-foundation/sms-bridge/lib/config"
	"github.com/bureau-foundation/sms-bridge/lib/logging"
	"github.com/bureau-foundation/sms-bridge/lib/process"
	"github.com/bureau-foundation/sms-bridge/lib/version"
)

const binaryName = "bureau-sms-bridge"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		dotEnvPath  string
		listen      string
		verbose     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "tuning file, YAML or JSONC (overrides "+config.EnvConfigPath+")")
	flagSet.StringVar(&dotEnvPath, "env-file", "", "dotenv file to seed the environment from (default: .env)")
	flagSet.StringVar(&listen, "listen", "", "ingestion server listen address (overrides listen_address)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		version.Print(binaryName)
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg, err := config.Load(config.Options{
		ConfigPath: configPath,
		DotEnvPath: dotEnvPath,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	defer cfg.Close()

	if listen != "" {
		cfg.Tuning.ListenAddress = listen
	}

	level := cfg.Tuning.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Tuning.Log.Format)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level, format)
	slog.SetDefault(logger)

	logger.Info("starting",
		"version", version.Info(),
		"user_id", cfg.Matrix.UserID,
		"room_alias", cfg.Matrix.RoomAlias,
		"listen_address", cfg.Tuning.ListenAddress,
		"signature_verification", cfg.Twilio.AuthToken != nil,
	)

	ctx, cancel := process.SignalContext(context.Background())
	defer cancel()

	relay, err := bridge.New(cfg, bridge.Options{Logger: logger})
	if err != nil {
		return err
	}
	if err := relay.Run(ctx); err != nil {
		return err
	}

	logger.Info("shut down")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `%s - relay Twilio SMS webhooks into a Matrix room

USAGE
    %s [flags]

ENVIRONMENT
    %-23s bot account, e.g. @sms:example.org (required)
    %-23s bot password (or %s)
    %-23s target room alias, e.g. #sms:example.org (required)
    %-23s homeserver base URL (default: .well-known discovery)
    %-23s enables X-Twilio-Signature verification

FLAGS
%s`,
		binaryName, binaryName,
		config.EnvUserID,
		config.EnvPassword, config.EnvPasswordFile,
		config.EnvRoomAlias,
		config.EnvHomeserverURL,
		config.EnvTwilioAuthToken,
		flagSet.FlagUsages(),
	)
}
