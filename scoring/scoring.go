// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package scoring computes per-scale results from survey answers.
//
// Each item contributes its answer to one scale; reversed items are
// mirrored within the survey's bounds first. A scale's score is the
// mean of its contributing answers, rounded to two decimals.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/opine-hq/opine/surveydef"
)

// ScaleScore is one scale's score, used for ordered presentation.
type ScaleScore struct {
	// Key is the scale key from the survey's scoring map.
	Key string
	// Score is the rounded per-scale mean.
	Score float64
}

// Result holds the computed scores for one completed survey.
type Result struct {
	// Scales maps scale key to rounded mean.
	Scales map[string]float64

	ordered []ScaleScore
}

// Score computes a Result from a survey and its answers. Answers are
// positional: answers[i] is the user's response to survey.Items[i].
// Every answer must be within the survey's scale bounds, and the
// answer count must match the item count exactly.
func Score(survey *surveydef.Survey, answers []int) (*Result, error) {
	if len(answers) != len(survey.Items) {
		return nil, fmt.Errorf("survey %s: got %d answers for %d items", survey.Key, len(answers), len(survey.Items))
	}

	sums := make(map[string]int, len(survey.Scoring))
	counts := make(map[string]int, len(survey.Scoring))

	for index, item := range survey.Items {
		answer := answers[index]
		if !survey.Scale.Contains(answer) {
			return nil, fmt.Errorf("survey %s: answer %d for items[%d] outside %d..%d", survey.Key, answer, index, survey.Scale.Min, survey.Scale.Max)
		}
		if item.Reversed {
			answer = survey.Scale.Reverse(answer)
		}
		sums[item.Scale] += answer
		counts[item.Scale]++
	}

	result := &Result{
		Scales:  make(map[string]float64, len(sums)),
		ordered: make([]ScaleScore, 0, len(sums)),
	}
	for key, sum := range sums {
		mean := round2(float64(sum) / float64(counts[key]))
		result.Scales[key] = mean
		result.ordered = append(result.ordered, ScaleScore{Key: key, Score: mean})
	}

	// Descending by score; ties break on key so output is stable.
	sort.Slice(result.ordered, func(i, j int) bool {
		if result.ordered[i].Score != result.ordered[j].Score {
			return result.ordered[i].Score > result.ordered[j].Score
		}
		return result.ordered[i].Key < result.ordered[j].Key
	})

	return result, nil
}

// FromScales rebuilds a Result from a stored scale map, restoring the
// same ordering Score produces. Used when presenting a persisted
// result (sharing, exports).
func FromScales(scales map[string]float64) *Result {
	result := &Result{
		Scales:  make(map[string]float64, len(scales)),
		ordered: make([]ScaleScore, 0, len(scales)),
	}
	for key, score := range scales {
		result.Scales[key] = score
		result.ordered = append(result.ordered, ScaleScore{Key: key, Score: score})
	}
	sort.Slice(result.ordered, func(i, j int) bool {
		if result.ordered[i].Score != result.ordered[j].Score {
			return result.ordered[i].Score > result.ordered[j].Score
		}
		return result.ordered[i].Key < result.ordered[j].Key
	})
	return result
}

// Ordered returns all scales sorted descending by score.
func (r *Result) Ordered() []ScaleScore {
	return r.ordered
}

// Top returns the n highest-scoring scales. Fewer are returned when
// the result has fewer scales.
func (r *Result) Top(n int) []ScaleScore {
	if n > len(r.ordered) {
		n = len(r.ordered)
	}
	return r.ordered[:n]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
