package engine

import (
	"math"
	"strings"
)

// Aggregate folds detector results, in the order given, into a Result.
//
// Each triggered category appends its tag to FlaggedCategories and raises
// ConfidenceScore to the maximum seen so far. Scores are never summed across
// categories; summing only happens inside a category's own detector.
func Aggregate(processed string, results []DetectorResult) *Result {
	res := &Result{
		IsAppropriate:     true,
		FlaggedCategories: []string{},
		ProcessedText:     processed,
		Scores:            map[Category]float64{},
	}

	for _, r := range results {
		if !r.Triggered {
			continue
		}
		if _, seen := res.Scores[r.Category]; seen {
			continue
		}
		res.FlaggedCategories = append(res.FlaggedCategories, r.Category.String())
		res.Scores[r.Category] = r.Score
		res.ConfidenceScore = math.Max(res.ConfidenceScore, r.Score)
	}

	res.IsAppropriate = len(res.FlaggedCategories) == 0
	return res
}

// AggregatorConfig holds the thresholds for verdict determination.
type AggregatorConfig struct {
	BlockThreshold float64 // Score >= this → BLOCK (default 0.8)
	FlagThreshold  float64 // Score >= this but < BlockThreshold → FLAG (default 0.0)
}

// DefaultAggregatorConfig returns the server default thresholds.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		BlockThreshold: 0.8,
		FlagThreshold:  0.0,
	}
}

// Decision holds the final verdict and reason for a Result.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Decide applies threshold rules to a Result's flagged categories.
//
// Rules (applied per flagged category, in evaluation order):
//  1. Category disabled by policy → ignored
//  2. Score >= block threshold → BLOCK
//  3. Score >= flag threshold  → FLAG (unless already BLOCK)
//  4. Otherwise → ALLOW
//
// Per-category thresholds come from the policy when set, falling back to cfg.
func Decide(res *Result, cfg AggregatorConfig, policy *PolicyConfig) Decision {
	verdict := VerdictAllow
	var triggered []string

	for _, tag := range res.FlaggedCategories {
		cat, _ := ParseCategory(tag)
		cp := policy.GetCategoryPolicy(tag)
		if !cp.IsEnabled() {
			continue
		}

		triggered = append(triggered, tag)
		score := res.Scores[cat]

		if score >= cp.EffectiveBlockThreshold(cfg.BlockThreshold) {
			verdict = VerdictBlock
		} else if score >= cp.EffectiveFlagThreshold(cfg.FlagThreshold) && verdict != VerdictBlock {
			verdict = VerdictFlag
		}
	}

	reason := ""
	if len(triggered) > 0 {
		reason = "triggered: " + strings.Join(triggered, ", ")
	}

	return Decision{
		Verdict: verdict,
		Reason:  reason,
	}
}
