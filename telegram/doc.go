// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegram wraps the Telegram Bot API for Opine's conversation
// needs.
//
// [Client] is the single entry point: it holds the API base URL, the
// bot token (in mmap-backed secret.Buffer memory, locked against swap
// and excluded from core dumps), and the HTTP transport. Every Bot API
// method is a POST of a JSON body to /bot<token>/<method>; responses
// share one envelope with an "ok" flag, a "result" payload, and error
// details. [Client.do] handles the envelope once so method wrappers
// stay small.
//
// Incoming traffic uses getUpdates long-polling: [Client.RunUpdateLoop]
// polls with the confirmed offset, retries transient failures with
// exponential backoff, and hands each batch of updates to a handler.
// Outgoing messages pass a per-chat token bucket plus a global one,
// keeping the bot under Telegram's flood limits without bookkeeping in
// callers.
//
// All API errors are returned as [*APIError] with the HTTP error code
// and the server's description; 429 responses also carry the
// retry_after hint. [IsAPIError] tests for a specific code. Request
// URLs are built by string concatenation — the token is the only
// path segment and never needs escaping.
package telegram
