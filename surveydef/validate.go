// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package surveydef

import (
	"fmt"
	"regexp"
	"sort"
)

// keyPattern matches valid survey and scale keys: lowercase
// identifiers starting with a letter, with digits and underscores
// allowed after. Anchored to the full string.
var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks a Survey for structural issues against the given
// set of supported locales. Returns a list of human-readable issue
// descriptions. An empty list means the survey is valid.
//
// Structural checks include:
//   - Key and Version are required; Key must be a lowercase identifier
//   - Status must be active, draft, or retired (or empty)
//   - Title must cover every supported locale
//   - Scale bounds must satisfy Min < Max
//   - At least one item is required
//   - Each item needs text for every supported locale
//   - Each item's scale must be a valid key with a Scoring entry
//   - Each Scoring label must cover every supported locale
//   - Scoring entries never referenced by an item are reported
func Validate(survey *Survey, locales []string) []string {
	var issues []string

	if survey.Key == "" {
		issues = append(issues, "key is required")
	} else if !keyPattern.MatchString(survey.Key) {
		issues = append(issues, fmt.Sprintf("key %q must be a lowercase identifier ([a-z][a-z0-9_]*)", survey.Key))
	}

	if survey.Version == "" {
		issues = append(issues, "version is required")
	}

	switch survey.Status {
	case "", StatusActive, StatusDraft, StatusRetired:
		// Valid.
	default:
		issues = append(issues, fmt.Sprintf("status must be \"active\", \"draft\", or \"retired\", got %q", survey.Status))
	}

	issues = append(issues, validateLocalized(survey.Title, "title", locales)...)

	if survey.Scale.Min >= survey.Scale.Max {
		issues = append(issues, fmt.Sprintf("scale bounds must satisfy min < max, got %d..%d", survey.Scale.Min, survey.Scale.Max))
	}

	if len(survey.Items) == 0 {
		issues = append(issues, "survey has no items (at least one item is required)")
	}

	referenced := make(map[string]bool, len(survey.Scoring))
	for index, item := range survey.Items {
		prefix := fmt.Sprintf("items[%d]", index)

		issues = append(issues, validateLocalized(item.Text, prefix+".text", locales)...)

		switch {
		case item.Scale == "":
			issues = append(issues, fmt.Sprintf("%s: scale is required", prefix))
		case !keyPattern.MatchString(item.Scale):
			issues = append(issues, fmt.Sprintf("%s: scale %q must be a lowercase identifier ([a-z][a-z0-9_]*)", prefix, item.Scale))
		default:
			referenced[item.Scale] = true
			if _, ok := survey.Scoring[item.Scale]; !ok {
				issues = append(issues, fmt.Sprintf("%s: scale %q has no scoring label", prefix, item.Scale))
			}
		}
	}

	if len(survey.Scoring) == 0 {
		issues = append(issues, "scoring is required (at least one scale label)")
	}

	// Deterministic issue order regardless of map iteration.
	scaleKeys := make([]string, 0, len(survey.Scoring))
	for key := range survey.Scoring {
		scaleKeys = append(scaleKeys, key)
	}
	sort.Strings(scaleKeys)

	for _, key := range scaleKeys {
		prefix := fmt.Sprintf("scoring[%q]", key)
		if !keyPattern.MatchString(key) {
			issues = append(issues, fmt.Sprintf("%s: scale key must be a lowercase identifier ([a-z][a-z0-9_]*)", prefix))
		}
		issues = append(issues, validateLocalized(survey.Scoring[key], prefix, locales)...)
		if !referenced[key] {
			issues = append(issues, fmt.Sprintf("%s: no item references this scale", prefix))
		}
	}

	return issues
}

// validateLocalized checks that a localized string has a non-empty
// value for every supported locale.
func validateLocalized(text Localized, prefix string, locales []string) []string {
	var issues []string
	for _, locale := range locales {
		if text[locale] == "" {
			issues = append(issues, fmt.Sprintf("%s: missing %q text", prefix, locale))
		}
	}
	return issues
}
