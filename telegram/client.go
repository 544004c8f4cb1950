// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opine-hq/opine/lib/clock"
	"github.com/opine-hq/opine/lib/netutil"
	"github.com/opine-hq/opine/lib/secret"
)

// globalSendRate bounds total outbound messages per second across all
// chats. Telegram's documented bot-wide limit is 30 messages per
// second.
const globalSendRate = 30

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// APIBaseURL is the Bot API endpoint (e.g., "https://api.telegram.org").
	APIBaseURL string
	// Token is the bot token. The client reads from the buffer on
	// every request but does not close it; the caller retains
	// ownership.
	Token *secret.Buffer
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used. Long-polling callers must ensure the client's timeout
	// (if any) exceeds the poll timeout.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Clock provides time for limiter bookkeeping. If nil, the real
	// clock is used.
	Clock clock.Clock
	// SendRate is the per-chat outbound message rate in messages per
	// second. Defaults to 1 if zero. Telegram's per-chat flood limit
	// is one message per second with short bursts tolerated.
	SendRate float64
	// SendBurst is the per-chat burst allowance. Defaults to 3 if
	// zero.
	SendBurst int
}

// Client is a Telegram Bot API client. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      *secret.Buffer
	httpClient *http.Client
	logger     *slog.Logger
	clock      clock.Clock

	// global caps total outbound sends; chat limiters cap each
	// conversation. Both are consulted before every send.
	global *rate.Limiter

	limiterMu    sync.Mutex
	chatLimiters map[int64]*chatLimiter
	sendRate     rate.Limit
	sendBurst    int
}

// chatLimiter pairs a per-chat token bucket with its last use, so
// idle conversations can be swept.
type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClient creates a Bot API client. The token is validated for
// presence only; call GetMe to verify it against the server.
func NewClient(config ClientConfig) (*Client, error) {
	if config.APIBaseURL == "" {
		return nil, fmt.Errorf("telegram: APIBaseURL is required")
	}
	if config.Token == nil {
		return nil, fmt.Errorf("telegram: Token is required")
	}

	// Validate the URL structure. The string form (with trailing
	// slash stripped) is stored and request URLs are built by direct
	// concatenation; the token and method name never need escaping.
	if _, err := url.Parse(config.APIBaseURL); err != nil {
		return nil, fmt.Errorf("telegram: invalid APIBaseURL %q: %w", config.APIBaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	sendRate := config.SendRate
	if sendRate <= 0 {
		sendRate = 1
	}
	sendBurst := config.SendBurst
	if sendBurst <= 0 {
		sendBurst = 3
	}

	return &Client{
		baseURL:      strings.TrimRight(config.APIBaseURL, "/"),
		token:        config.Token,
		httpClient:   httpClient,
		logger:       logger,
		clock:        clk,
		global:       rate.NewLimiter(globalSendRate, globalSendRate),
		chatLimiters: make(map[int64]*chatLimiter),
		sendRate:     rate.Limit(sendRate),
		sendBurst:    sendBurst,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests to establish fresh TCP connections instead
// of reusing a poisoned pooled connection.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// GetMe returns the bot's own account. Used at startup to verify the
// token before entering the update loop.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	result, err := c.do(ctx, "getMe", nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: getMe failed: %w", err)
	}

	var user User
	if err := json.Unmarshal(result, &user); err != nil {
		return nil, fmt.Errorf("telegram: failed to parse getMe response: %w", err)
	}
	return &user, nil
}

// apiResponse is the uniform Bot API response envelope. On success,
// ok is true and result holds the method's payload. On failure, ok is
// false and error_code/description carry the error; 429 responses add
// parameters.retry_after.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// do performs one Bot API method call and returns the raw result
// payload. On an error envelope (or a non-JSON error response), it
// returns a *APIError.
func (c *Client) do(ctx context.Context, method string, requestBody any) (json.RawMessage, error) {
	var bodyReader *bytes.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("telegram: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("telegram: request to %s failed: %w", method, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to read response body: %w", err)
	}

	var envelope apiResponse
	if jsonErr := json.Unmarshal(responseBody, &envelope); jsonErr != nil {
		// Server returned non-JSON. This should not happen with the
		// real Bot API, but fail loud with the raw body.
		return nil, fmt.Errorf("telegram: unexpected %d response from %s: %s",
			response.StatusCode, method, string(responseBody))
	}

	if envelope.OK {
		return envelope.Result, nil
	}

	apiErr := &APIError{
		ErrorCode:   envelope.ErrorCode,
		Description: envelope.Description,
	}
	if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
	}
	return nil, apiErr
}

// methodURL builds the request URL for a Bot API method. The token is
// a path segment: https://api.telegram.org/bot<token>/<method>.
func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token.String() + "/" + method
}

// waitToSend blocks until both the global and the per-chat limiter
// grant a token, or the context is cancelled.
func (c *Client) waitToSend(ctx context.Context, chatID int64) error {
	if err := c.global.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}
	if err := c.limiterFor(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("telegram: chat %d rate limit wait: %w", chatID, err)
	}
	return nil
}

// limiterFor returns the chat's token bucket, creating it on first
// use.
func (c *Client) limiterFor(chatID int64) *rate.Limiter {
	now := c.clock.Now()

	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()

	if entry, ok := c.chatLimiters[chatID]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(c.sendRate, c.sendBurst)
	c.chatLimiters[chatID] = &chatLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// SweepLimiters drops per-chat limiters idle for longer than maxIdle.
// Called periodically from the bot's housekeeping ticker; a dropped
// limiter is recreated (full) on the chat's next send, which is
// harmless after an idle period.
func (c *Client) SweepLimiters(maxIdle time.Duration) int {
	cutoff := c.clock.Now().Add(-maxIdle)

	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()

	removed := 0
	for chatID, entry := range c.chatLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(c.chatLimiters, chatID)
			removed++
		}
	}
	return removed
}
