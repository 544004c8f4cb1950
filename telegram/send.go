// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/opine-hq/opine/lib/netutil"
)

// SendMessage sends a text message, waiting on the rate limiters
// first. Returns the sent message as echoed by the server.
func (c *Client) SendMessage(ctx context.Context, request SendMessageRequest) (*Message, error) {
	if err := c.waitToSend(ctx, request.ChatID); err != nil {
		return nil, err
	}

	result, err := c.do(ctx, "sendMessage", request)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendMessage to chat %d failed: %w", request.ChatID, err)
	}

	var message Message
	if err := json.Unmarshal(result, &message); err != nil {
		return nil, fmt.Errorf("telegram: failed to parse sendMessage response: %w", err)
	}
	return &message, nil
}

// AnswerCallbackQuery acknowledges an inline button press. Every
// callback must be answered, even with empty text, or the user's
// client shows a spinner until timeout. Not rate limited: answers are
// cheap acknowledgements, not messages.
func (c *Client) AnswerCallbackQuery(ctx context.Context, request AnswerCallbackRequest) error {
	if _, err := c.do(ctx, "answerCallbackQuery", request); err != nil {
		return fmt.Errorf("telegram: answerCallbackQuery failed: %w", err)
	}
	return nil
}

// SendDocument uploads a file to a chat as multipart form data.
// Used for CSV exports.
func (c *Client) SendDocument(ctx context.Context, request SendDocumentRequest) (*Message, error) {
	if err := c.waitToSend(ctx, request.ChatID); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("chat_id", strconv.FormatInt(request.ChatID, 10)); err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}
	if request.Caption != "" {
		if err := form.WriteField("caption", request.Caption); err != nil {
			return nil, fmt.Errorf("telegram: building upload form: %w", err)
		}
	}

	part, err := form.CreateFormFile("document", request.FileName)
	if err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}
	if _, err := part.Write(request.Content); err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("telegram: building upload form: %w", err)
	}

	result, err := c.doUpload(ctx, "sendDocument", form.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendDocument to chat %d failed: %w", request.ChatID, err)
	}

	var message Message
	if err := json.Unmarshal(result, &message); err != nil {
		return nil, fmt.Errorf("telegram: failed to parse sendDocument response: %w", err)
	}
	return &message, nil
}

// doUpload performs a Bot API call with a raw (non-JSON) request body.
// Same envelope handling as do.
func (c *Client) doUpload(ctx context.Context, method, contentType string, body *bytes.Buffer) (json.RawMessage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)

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
