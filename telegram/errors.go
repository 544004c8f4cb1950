// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a structured error response from the Bot API.
// Callers can use errors.As to extract the structured information:
//
//	var apiErr *telegram.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.ErrorCode == http.StatusForbidden { ... }
//	}
type APIError struct {
	// ErrorCode is the error_code field, mirroring the HTTP status
	// (400, 403, 429, ...).
	ErrorCode int `json:"error_code"`
	// Description is the human-readable error description from the
	// server.
	Description string `json:"description"`
	// RetryAfter is the server's flood-control hint from a 429
	// response, zero otherwise.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %d: %s (retry after %s)", e.ErrorCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %d: %s", e.ErrorCode, e.Description)
}

// IsAPIError checks whether err is a *APIError with the given error code.
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == code
	}
	return false
}
