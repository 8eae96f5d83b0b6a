// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-sms-bridge relays inbound SMS from Twilio into a Matrix room.
//
// Credentials and the target room come from the environment (optionally
// seeded from a .env file); operational tuning comes from an optional
// YAML or JSONC file. See package config for the variable names. The
// process logs in as the bot account, keeps a sync loop running, and
// accepts Twilio webhooks on POST /twilio/messages. Either half failing
// ends the process with a non-zero exit code so a supervisor can
// restart it.
package main
