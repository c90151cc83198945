// Package sources defines the collector contract and the per-source
// collectors that turn raw subject facts into SourceScore contributions.
//
// Each collector owns its formula and applies time decay internally, exactly
// once; the SourceScore it emits is the final, ready-to-aggregate number.
// Zero relevant data is a legitimate empty-signal result, never an error,
// and no collector divides by an observation count without checking it
// first.
package sources

import (
	"context"
	"math"

	"github.com/okian/repute/internal/domain/model"
)

// Known source names. The slice fixes the evaluation order so an identical
// input set always produces an identical collector fan-out.
const (
	SourcePayments    = "payments"
	SourceStaking     = "staking"
	SourceCredentials = "credentials"
	SourceReviews     = "reviews"
	SourceQuality     = "quality"
)

// Names lists every known source in evaluation order.
func Names() []string {
	return []string{SourcePayments, SourceStaking, SourceCredentials, SourceReviews, SourceQuality}
}

// DefaultSettings returns the built-in per-source configuration. Weights sum
// to 1; half-lives reflect how quickly each kind of evidence goes stale.
func DefaultSettings() map[string]Settings {
	return map[string]Settings{
		SourcePayments:    {Weight: 0.25, HalfLifeDays: 30, MinPointsForFullConfidence: 20},
		SourceStaking:     {Weight: 0.20, HalfLifeDays: 90, MinPointsForFullConfidence: 1},
		SourceCredentials: {Weight: 0.20, HalfLifeDays: 180, MinPointsForFullConfidence: 5},
		SourceReviews:     {Weight: 0.20, HalfLifeDays: 60, MinPointsForFullConfidence: 10},
		SourceQuality:     {Weight: 0.15, HalfLifeDays: 14, MinPointsForFullConfidence: 50},
	}
}

// Settings configures one collector.
type Settings struct {
	// Weight is the source's designed share of the final score, in [0,1].
	Weight float64 `koanf:"weight"`

	// HalfLifeDays controls how quickly this source's signal fades.
	HalfLifeDays float64 `koanf:"half_life_days"`

	// MinPointsForFullConfidence is the observation count at which the
	// source reports confidence 1.0. Below it, confidence scales linearly.
	MinPointsForFullConfidence int `koanf:"min_points"`
}

// Collector produces one source's contribution for a subject at a given
// evaluation time. Implementations are thin adapters over external data.
type Collector interface {
	// Name identifies the source this collector speaks for.
	Name() string

	// Collect returns the fully decayed, validated SourceScore for the
	// subject, or the empty signal when the subject has no relevant data.
	Collect(ctx context.Context, subjectID string, nowMs int64) (model.SourceScore, error)
}

// confidenceFor scales confidence linearly with observed data points,
// capped at 1. Zero points always means zero confidence.
func confidenceFor(points, minFull int) float64 {
	if points <= 0 {
		return 0
	}
	if minFull <= 0 {
		return 1
	}
	return math.Min(1, float64(points)/float64(minFull))
}
