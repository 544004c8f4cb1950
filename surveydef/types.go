// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package surveydef provides parsing, validation, and registry loading
// for survey definitions. A survey is a sequence of Likert-scale items
// grouped into named scales; answers are scored per scale.
//
// Definitions are authored on disk as JSONC files (JSON extended with
// comments and trailing commas), one survey per file.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Survey
//  2. Validate: structural checks (key, items, scoring coverage, bounds)
//  3. Registry.LoadDir: load a directory into an atomic snapshot
package surveydef

import "sort"

// Status controls whether a survey is offered to users.
type Status string

const (
	// StatusActive surveys appear in the user-facing menu.
	StatusActive Status = "active"
	// StatusDraft surveys load and validate but are not offered.
	StatusDraft Status = "draft"
	// StatusRetired surveys are kept for scoring old results only.
	StatusRetired Status = "retired"
)

// Localized is a per-locale string map, keyed by locale code ("ru", "uz").
type Localized map[string]string

// Get returns the text for the given locale, falling back to the
// fallback locale and then to any available value. A survey that
// passed Validate always has a value for every supported locale, so
// the fallbacks only matter for partially-localized drafts.
func (l Localized) Get(locale, fallback string) string {
	if text, ok := l[locale]; ok && text != "" {
		return text
	}
	if text, ok := l[fallback]; ok && text != "" {
		return text
	}
	for _, locale := range sortedKeys(l) {
		if l[locale] != "" {
			return l[locale]
		}
	}
	return ""
}

// Locales returns the locale codes present in the map, sorted.
func (l Localized) Locales() []string {
	return sortedKeys(l)
}

func sortedKeys(l Localized) []string {
	keys := make([]string, 0, len(l))
	for key := range l {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ScaleBounds is the answer range for a survey's Likert items.
// Reversal maps an answer v to (Min + Max) - v.
type ScaleBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Span returns the number of distinct answer values.
func (b ScaleBounds) Span() int {
	return b.Max - b.Min + 1
}

// Contains reports whether v is a valid answer under these bounds.
func (b ScaleBounds) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

// Reverse maps an answer to its mirrored value within the bounds.
func (b ScaleBounds) Reverse(v int) int {
	return b.Min + b.Max - v
}

// Item is a single questionnaire statement. The user answers on the
// survey's scale; Reversed items are mirrored before scoring.
type Item struct {
	// Text is the localized statement shown to the user.
	Text Localized `json:"text"`

	// Scale is the scoring scale this item contributes to. Must have
	// an entry in the survey's Scoring map.
	Scale string `json:"scale"`

	// Reversed items are scored as (min+max) - answer.
	Reversed bool `json:"reversed,omitempty"`
}

// Survey is a complete questionnaire definition.
type Survey struct {
	// Key uniquely identifies the survey across the registry.
	// Lowercase identifier, e.g. "psychotype".
	Key string `json:"key"`

	// Version is bumped whenever items or scoring change, so stored
	// results can be traced to the definition that produced them.
	Version string `json:"version"`

	// Status controls menu visibility. Empty defaults to active.
	Status Status `json:"status,omitempty"`

	// Title is the localized menu title.
	Title Localized `json:"title"`

	// Scale is the answer range. Zero value defaults to 1..5.
	Scale ScaleBounds `json:"scale"`

	// Items are the questionnaire statements, in presentation order.
	Items []Item `json:"items"`

	// Scoring maps scale keys to their localized display labels.
	Scoring map[string]Localized `json:"scoring"`
}

// EffectiveStatus resolves the empty status to active.
func (s *Survey) EffectiveStatus() Status {
	if s.Status == "" {
		return StatusActive
	}
	return s.Status
}

// ScaleKeys returns the scoring scale keys, sorted for determinism.
func (s *Survey) ScaleKeys() []string {
	keys := make([]string, 0, len(s.Scoring))
	for key := range s.Scoring {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
