// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opine-hq/opine/lib/clock"
)

// UpdateConfig configures the getUpdates long-poll loop.
type UpdateConfig struct {
	// Timeout is the long-poll timeout. The server holds the
	// connection open for this duration when no updates are
	// available, then returns an empty batch. Default: 50 seconds.
	Timeout time.Duration

	// AllowedUpdates restricts which update types the server
	// delivers. Opine only handles messages and callback queries;
	// narrowing the set also discards any backlog of other types.
	AllowedUpdates []string

	// MaxBackoff is the maximum duration between retry attempts on
	// transient getUpdates errors. The loop uses exponential backoff
	// starting at 1 second. Default: 30 seconds.
	MaxBackoff time.Duration
}

// UpdateHandler is called for each batch of updates, in delivery
// order. The next poll starts after the handler returns, so handlers
// should not block for extended periods.
type UpdateHandler func(ctx context.Context, updates []Update)

// GetUpdates performs one getUpdates call. An offset of N confirms
// all updates with IDs below N; the server then only returns IDs >= N.
// A zero timeout makes the call return immediately.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration, allowedUpdates []string) ([]Update, error) {
	request := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: allowedUpdates,
	}

	result, err := c.do(ctx, "getUpdates", request)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates failed: %w", err)
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: failed to parse updates: %w", err)
	}
	return updates, nil
}

// RunUpdateLoop runs the getUpdates long-poll loop. It polls with the
// confirmed offset and calls handler for each non-empty batch. The
// loop continues until ctx is cancelled.
//
// On transient errors, the loop retries with exponential backoff
// (1 second to config.MaxBackoff); a 429 flood response waits at
// least the server's retry_after hint. On context cancellation
// (service shutdown), the loop returns cleanly.
//
// The offset is advanced past every delivered update before the
// handler runs, so a handler crash does not replay the batch on
// restart.
func (c *Client) RunUpdateLoop(ctx context.Context, config UpdateConfig, handler UpdateHandler, clk clock.Clock, logger *slog.Logger) {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 50 * time.Second
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	var offset int64
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.GetUpdates(ctx, offset, timeout, config.AllowedUpdates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}

			logger.Error("getUpdates failed, retrying", "error", err, "backoff", wait)
			select {
			case <-ctx.Done():
				return
			case <-clk.After(wait):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second

		if len(updates) == 0 {
			continue
		}
		offset = updates[len(updates)-1].UpdateID + 1

		handler(ctx, updates)
	}
}
