// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package surveydef

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Survey. The input format is plain JSON
// extended with // line comments, /* block comments */, and trailing
// commas. Parse applies the 1..5 scale default; it does not validate.
func Parse(data []byte) (*Survey, error) {
	stripped := jsonc.ToJSON(data)

	var survey Survey
	if err := json.Unmarshal(stripped, &survey); err != nil {
		return nil, fmt.Errorf("parsing survey: %w", err)
	}

	// Likert 1..5 is the default answer range.
	if survey.Scale == (ScaleBounds{}) {
		survey.Scale = ScaleBounds{Min: 1, Max: 5}
	}

	return &survey, nil
}

// ReadFile reads a JSONC survey file from disk and parses it into a
// Survey. Returns a descriptive error if the file cannot be read or
// the JSON is malformed.
func ReadFile(path string) (*Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	survey, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return survey, nil
}
