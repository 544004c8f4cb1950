// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opine-hq/opine/scoring"
	"github.com/opine-hq/opine/surveydef"
)

// formatScore renders a scale mean the way users expect: whole
// numbers without a decimal point, fractions trimmed ("4", "3.5",
// "2.67").
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// summaryBlock renders one locale's section of the result summary:
// title, per-scale lines, top factors, and the role-hint tips.
func summaryBlock(survey *surveydef.Survey, result *scoring.Result, lang string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *%s*", survey.Title.Get(lang, LocaleRU))
	for _, key := range survey.ScaleKeys() {
		score, ok := result.Scales[key]
		if !ok {
			continue
		}
		label := survey.Scoring[key].Get(lang, LocaleRU)
		fmt.Fprintf(&b, "\n• *%s*: %s/%d", label, formatScore(score), survey.Scale.Max)
	}

	b.WriteString("\n")
	b.WriteString(topFactorsPrefix.get(lang))
	var top []string
	for _, entry := range result.Top(3) {
		label := survey.Scoring[entry.Key].Get(lang, LocaleRU)
		top = append(top, fmt.Sprintf("%s (%s)", label, formatScore(entry.Score)))
	}
	b.WriteString(strings.Join(top, ", "))

	b.WriteString(summaryTips.get(lang))
	return b.String()
}

// resultSummary renders the full bilingual summary sent after the
// last answer: the Russian block, then the Uzbek one.
func resultSummary(survey *surveydef.Survey, result *scoring.Result) string {
	return summaryBlock(survey, result, LocaleRU) + "\n\n" + summaryBlock(survey, result, LocaleUZ)
}

// shareText renders the message forwarded to administrators when a
// user shares a result. Always in Russian, the HR team's working
// language.
func shareText(username string, userID int64, survey *surveydef.Survey, version string, result *scoring.Result) string {
	var b strings.Builder

	if username != "" {
		fmt.Fprintf(&b, "👤 @%s\n", username)
	} else {
		fmt.Fprintf(&b, "👤 @%d\n", userID)
	}
	fmt.Fprintf(&b, "%s (v%s)", survey.Title.Get(LocaleRU, LocaleRU), version)
	for _, key := range survey.ScaleKeys() {
		score, ok := result.Scales[key]
		if !ok {
			continue
		}
		label := survey.Scoring[key].Get(LocaleRU, LocaleRU)
		fmt.Fprintf(&b, "\n• %s: %s/%d", label, formatScore(score), survey.Scale.Max)
	}
	return b.String()
}
