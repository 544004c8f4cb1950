// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Command opine-bot runs the Opine survey bot against the Telegram
// Bot API.
//
// The bot loads its configuration from the file named by --config (or
// the OPINE_CONFIG environment variable), reads survey definitions
// from the configured directory, and long-polls getUpdates until
// interrupted. Results are persisted to a local SQLite database.
//
// Usage:
//
//	opine-bot --config /etc/opine/opine.yaml
package main
