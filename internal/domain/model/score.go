// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
)

// Score domain bounds shared by every component.
const (
	MinScore = 0
	MaxScore = 10000
)

// SourceScore is one source's fully prepared contribution for a subject.
//
// RawScore arrives already time-decayed by the collector that produced it;
// DecayFactor records the multiplier that was applied and exists for
// diagnostics only. Nothing downstream may apply decay a second time.
type SourceScore struct {
	Source      string  `json:"source"`
	RawScore    float64 `json:"raw_score"`
	Weight      float64 `json:"weight"`
	Confidence  float64 `json:"confidence"`
	DataPoints  int     `json:"data_points"`
	DecayFactor float64 `json:"decay_factor"`
	LastUpdated int64   `json:"last_updated_ms"`
}

// EmptySignal returns the defined zero-data contribution for a source.
// It is a legitimate answer for a subject without history, not an error.
func EmptySignal(source string) SourceScore {
	return SourceScore{Source: source, DecayFactor: 1}
}

// IsEmpty reports whether the score carries no signal at all.
func (s SourceScore) IsEmpty() bool {
	return s.RawScore == 0 && s.Confidence == 0 && s.DataPoints == 0
}

// Validate checks every field against its declared domain. A violation means
// the producing collector is buggy; the value must surface as an error and
// never be clamped into validity.
func (s SourceScore) Validate() error {
	switch {
	case s.Source == "":
		return fmt.Errorf("%w: missing source name", ErrContractViolation)
	case !isFinite(s.RawScore):
		return fmt.Errorf("%w: source %q raw score is not finite", ErrContractViolation, s.Source)
	case s.RawScore < MinScore || s.RawScore > MaxScore:
		return fmt.Errorf("%w: source %q raw score %.2f outside [%d,%d]", ErrContractViolation, s.Source, s.RawScore, MinScore, MaxScore)
	case !isFinite(s.Weight) || s.Weight < 0 || s.Weight > 1:
		return fmt.Errorf("%w: source %q weight %v outside [0,1]", ErrContractViolation, s.Source, s.Weight)
	case !isFinite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1:
		return fmt.Errorf("%w: source %q confidence %v outside [0,1]", ErrContractViolation, s.Source, s.Confidence)
	case s.DataPoints < 0:
		return fmt.Errorf("%w: source %q negative data points %d", ErrContractViolation, s.Source, s.DataPoints)
	case !isFinite(s.DecayFactor) || s.DecayFactor <= 0 || s.DecayFactor > 1:
		return fmt.Errorf("%w: source %q decay factor %v outside (0,1]", ErrContractViolation, s.Source, s.DecayFactor)
	}
	return nil
}

// AggregationResult is the final reputation answer for a subject.
// Field names mirror the JSON shape served to callers.
type AggregationResult struct {
	Score          int    `json:"score"`
	ConfidenceLow  int    `json:"confidence_low"`
	ConfidenceHigh int    `json:"confidence_high"`
	Tier           string `json:"tier"`
	SourcesUsed    int    `json:"sources_used"`
}

// Snapshot is one append-only score history row.
type Snapshot struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	TimestampMs int64  `json:"timestamp_ms"`
	Score       int    `json:"score"`
	Tier        string `json:"tier"`
}

// Job asks the engine to re-score a subject and snapshot the result.
type Job struct {
	SubjectID   string
	RequestedMs int64
	Reason      string // "cron", "ingest", "manual"
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
