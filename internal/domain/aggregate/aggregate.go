// Package aggregate combines per-source scores into one reputation result.
//
// The Aggregator is a pure function of its inputs: no shared mutable state,
// no clock reads, safe for concurrent use across subjects without locking.
// Decay is already baked into each SourceScore's RawScore by the collector
// that produced it and is never reapplied here.
package aggregate

import (
	"math"

	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
)

// Default aggregation configuration constants.
const (
	defaultTrimSigma          = 2.0
	defaultMinTrimmablePoints = 5
	defaultMinSourcesForTrim  = 3
	defaultShrinkagePoints    = 10.0

	// intervalZ widens the confidence interval to a ~95% band around the
	// weighted mean before evidence shrinkage is applied.
	intervalZ = 1.96
)

// Aggregator combines SourceScores per a fixed, immutable configuration.
type Aggregator struct {
	tiers *tier.Table

	trimSigma          float64
	minTrimmablePoints int
	minSourcesForTrim  int
	shrinkagePoints    float64
}

// New constructs an Aggregator bound to the given tier table.
func New(tiers *tier.Table, opts ...Option) *Aggregator {
	a := &Aggregator{
		tiers:              tiers,
		trimSigma:          defaultTrimSigma,
		minTrimmablePoints: defaultMinTrimmablePoints,
		minSourcesForTrim:  defaultMinSourcesForTrim,
		shrinkagePoints:    defaultShrinkagePoints,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate combines the given source contributions into a final score,
// confidence interval, and tier.
//
// An empty or all-empty input is not an error: it returns the defined
// "we know nothing" result of score 0 with a zero-width interval. The only
// error path is a contract violation in one of the inputs, which names the
// offending source so the collector bug is found in testing.
func (a *Aggregator) Aggregate(sources []model.SourceScore) (model.AggregationResult, error) {
	// Validate first so a bad value fails loudly instead of polluting math.
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			return model.AggregationResult{}, err
		}
	}

	// Drop sources with nothing to say. A zero weight or zero confidence
	// contributes nothing and would only pollute the variance term.
	active := make([]model.SourceScore, 0, len(sources))
	for _, s := range sources {
		if s.Weight == 0 || s.Confidence == 0 {
			continue
		}
		active = append(active, s)
	}

	kept := a.trimOutliers(active)
	return a.combine(kept), nil
}

// trimOutliers removes low-evidence outliers: sources whose score deviates
// from the weighted mean by more than the configured number of standard
// deviations AND whose data point count is below the trimmable threshold.
// A source with abundant data is never trimmed for disagreeing; it may be
// correctly detecting something the other sources cannot see. Trimming is
// skipped entirely for small sets, where a single divergent source would
// otherwise dominate the deviation estimate.
func (a *Aggregator) trimOutliers(active []model.SourceScore) []model.SourceScore {
	if len(active) < a.minSourcesForTrim {
		return active
	}

	mean, sigma, ok := weightedMoments(active)
	if !ok || sigma == 0 {
		return active
	}

	kept := make([]model.SourceScore, 0, len(active))
	for _, s := range active {
		deviant := math.Abs(s.RawScore-mean) > a.trimSigma*sigma
		if deviant && s.DataPoints < a.minTrimmablePoints {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// combine performs the weighted mix over already filtered and trimmed
// sources: effective weights, normalization, weighted mean, clamp-and-round
// on both ends, and the evidence-shrunk confidence interval.
func (a *Aggregator) combine(kept []model.SourceScore) model.AggregationResult {
	var sumEff float64
	effs := make([]float64, len(kept))
	for i, s := range kept {
		effs[i] = s.Weight * s.Confidence
		sumEff += effs[i]
	}
	if sumEff == 0 {
		// Knowing nothing about a subject is the correct answer here,
		// not a failure.
		return model.AggregationResult{Tier: a.tiers.Classify(0)}
	}

	var mean float64
	for i, s := range kept {
		mean += (effs[i] / sumEff) * s.RawScore
	}

	// Clamp on both ends before rounding. The lower clamp matters the moment
	// any source is allowed to contribute a penalty signal.
	score := int(math.Round(clamp(mean, model.MinScore, model.MaxScore)))

	// Weighted variance of the per-source scores around the mean, shrunk as
	// total evidence accumulates: spread / sqrt(1 + points/shrinkagePoints).
	var variance float64
	totalPoints := 0
	for i, s := range kept {
		d := s.RawScore - mean
		variance += (effs[i] / sumEff) * d * d
		totalPoints += s.DataPoints
	}
	spread := intervalZ * math.Sqrt(variance) / math.Sqrt(1+float64(totalPoints)/a.shrinkagePoints)

	low := int(math.Round(clamp(mean-spread, model.MinScore, model.MaxScore)))
	high := int(math.Round(clamp(mean+spread, model.MinScore, model.MaxScore)))
	if low > score {
		low = score
	}
	if high < score {
		high = score
	}

	return model.AggregationResult{
		Score:          score,
		ConfidenceLow:  low,
		ConfidenceHigh: high,
		Tier:           a.tiers.Classify(score),
		SourcesUsed:    len(kept),
	}
}

// weightedMoments returns the effective-weighted mean and standard deviation
// of the raw scores. ok is false when the set carries no effective weight.
func weightedMoments(scores []model.SourceScore) (mean, sigma float64, ok bool) {
	var sumW float64
	for _, s := range scores {
		sumW += s.Weight * s.Confidence
	}
	if sumW == 0 {
		return 0, 0, false
	}
	for _, s := range scores {
		mean += (s.Weight * s.Confidence / sumW) * s.RawScore
	}
	var variance float64
	for _, s := range scores {
		d := s.RawScore - mean
		variance += (s.Weight * s.Confidence / sumW) * d * d
	}
	return mean, math.Sqrt(variance), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
