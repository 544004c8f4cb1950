// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package surveydef

import (
	"strings"
	"testing"
)

var testLocales = []string{"ru", "uz"}

// validSurvey returns a minimal survey that passes Validate.
func validSurvey() *Survey {
	return &Survey{
		Key:     "grit",
		Version: "1",
		Title:   Localized{"ru": "Упорство", "uz": "Qat'iyat"},
		Scale:   ScaleBounds{Min: 1, Max: 5},
		Items: []Item{
			{Text: Localized{"ru": "Я довожу дела до конца", "uz": "Men ishni oxiriga yetkazaman"}, Scale: "persistence"},
			{Text: Localized{"ru": "Я легко сдаюсь", "uz": "Men tez taslim bo'laman"}, Scale: "persistence", Reversed: true},
		},
		Scoring: map[string]Localized{
			"persistence": {"ru": "Настойчивость", "uz": "Qat'iylik"},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		mutate         func(*Survey)
		expectedIssues int
		wantSubstrings []string
	}{
		{
			name:           "valid survey",
			mutate:         func(s *Survey) {},
			expectedIssues: 0,
		},
		{
			name:           "missing key",
			mutate:         func(s *Survey) { s.Key = "" },
			expectedIssues: 1,
			wantSubstrings: []string{"key is required"},
		},
		{
			name:           "uppercase key",
			mutate:         func(s *Survey) { s.Key = "Grit" },
			expectedIssues: 1,
			wantSubstrings: []string{"lowercase identifier"},
		},
		{
			name:           "missing version",
			mutate:         func(s *Survey) { s.Version = "" },
			expectedIssues: 1,
			wantSubstrings: []string{"version is required"},
		},
		{
			name:           "bad status",
			mutate:         func(s *Survey) { s.Status = "paused" },
			expectedIssues: 1,
			wantSubstrings: []string{`got "paused"`},
		},
		{
			name:           "title missing locale",
			mutate:         func(s *Survey) { delete(s.Title, "uz") },
			expectedIssues: 1,
			wantSubstrings: []string{`title: missing "uz" text`},
		},
		{
			name:           "inverted scale bounds",
			mutate:         func(s *Survey) { s.Scale = ScaleBounds{Min: 5, Max: 1} },
			expectedIssues: 1,
			wantSubstrings: []string{"min < max"},
		},
		{
			name: "no items",
			mutate: func(s *Survey) {
				s.Items = nil
			},
			// The scoring scale also becomes unreferenced.
			expectedIssues: 2,
			wantSubstrings: []string{"no items", "no item references this scale"},
		},
		{
			name: "item missing scale",
			mutate: func(s *Survey) {
				s.Items[0].Scale = ""
			},
			expectedIssues: 1,
			wantSubstrings: []string{"items[0]: scale is required"},
		},
		{
			name: "item with unlabeled scale",
			mutate: func(s *Survey) {
				s.Items[0].Scale = "focus"
			},
			expectedIssues: 1,
			wantSubstrings: []string{`items[0]: scale "focus" has no scoring label`},
		},
		{
			name: "item text missing locale",
			mutate: func(s *Survey) {
				delete(s.Items[1].Text, "ru")
			},
			expectedIssues: 1,
			wantSubstrings: []string{`items[1].text: missing "ru" text`},
		},
		{
			name: "scoring label missing locale",
			mutate: func(s *Survey) {
				delete(s.Scoring["persistence"], "uz")
			},
			expectedIssues: 1,
			wantSubstrings: []string{`scoring["persistence"]: missing "uz" text`},
		},
		{
			name: "unreferenced scoring entry",
			mutate: func(s *Survey) {
				s.Scoring["focus"] = Localized{"ru": "Фокус", "uz": "Diqqat"}
			},
			expectedIssues: 1,
			wantSubstrings: []string{`scoring["focus"]: no item references this scale`},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			survey := validSurvey()
			tt.mutate(survey)

			issues := Validate(survey, testLocales)
			if len(issues) != tt.expectedIssues {
				t.Errorf("expected %d issues, got %d: %v", tt.expectedIssues, len(issues), issues)
			}

			joined := strings.Join(issues, "\n")
			for _, want := range tt.wantSubstrings {
				if !strings.Contains(joined, want) {
					t.Errorf("expected issue containing %q, got:\n%s", want, joined)
				}
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		// survey key
		"key": "grit",
		"version": "2",
		"title": {"ru": "Упорство", "uz": "Qat'iyat"},
		"items": [
			{"text": {"ru": "а", "uz": "a"}, "scale": "persistence", "reversed": true},
		],
		"scoring": {
			"persistence": {"ru": "Настойчивость", "uz": "Qat'iylik"},
		},
	}`)

	survey, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if survey.Key != "grit" || survey.Version != "2" {
		t.Errorf("unexpected key/version: %s/%s", survey.Key, survey.Version)
	}

	// Scale defaults to 1..5 when omitted.
	if survey.Scale != (ScaleBounds{Min: 1, Max: 5}) {
		t.Errorf("expected default scale 1..5, got %+v", survey.Scale)
	}

	if len(survey.Items) != 1 || !survey.Items[0].Reversed {
		t.Errorf("unexpected items: %+v", survey.Items)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte(`{"key": `)); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestScaleBounds(t *testing.T) {
	t.Parallel()

	bounds := ScaleBounds{Min: 1, Max: 5}

	if got := bounds.Reverse(1); got != 5 {
		t.Errorf("Reverse(1) = %d, want 5", got)
	}
	if got := bounds.Reverse(3); got != 3 {
		t.Errorf("Reverse(3) = %d, want 3", got)
	}
	if got := bounds.Span(); got != 5 {
		t.Errorf("Span() = %d, want 5", got)
	}
	if bounds.Contains(0) || bounds.Contains(6) {
		t.Error("Contains accepted out-of-range answers")
	}
	if !bounds.Contains(1) || !bounds.Contains(5) {
		t.Error("Contains rejected boundary answers")
	}
}

func TestLocalizedGet(t *testing.T) {
	t.Parallel()

	text := Localized{"ru": "привет", "uz": ""}

	if got := text.Get("ru", "uz"); got != "привет" {
		t.Errorf("Get(ru) = %q, want %q", got, "привет")
	}
	// Empty value falls through to the fallback chain.
	if got := text.Get("uz", "ru"); got != "привет" {
		t.Errorf("Get(uz) = %q, want fallback %q", got, "привет")
	}
	if got := (Localized{}).Get("ru", "uz"); got != "" {
		t.Errorf("Get on empty map = %q, want empty", got)
	}
}
