package aggregate

import (
	"testing"

	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
)

// combine is exercised directly with synthetic values that validation would
// reject, to prove the clamp holds on both ends once penalty-style signals
// are allowed through.
func TestCombineClampsBothEnds(t *testing.T) {
	a := New(tier.Default())

	negative := a.combine([]model.SourceScore{
		{Source: "synthetic", RawScore: -500, Weight: 1, Confidence: 1, DataPoints: 10, DecayFactor: 1},
	})
	if negative.Score != 0 {
		t.Errorf("expected score clamped to 0, got %d", negative.Score)
	}
	if negative.ConfidenceLow != 0 {
		t.Errorf("expected low clamped to 0, got %d", negative.ConfidenceLow)
	}
	if negative.Tier != "explorer" {
		t.Errorf("expected explorer tier at the floor, got %q", negative.Tier)
	}

	overflow := a.combine([]model.SourceScore{
		{Source: "synthetic", RawScore: 10500, Weight: 1, Confidence: 1, DataPoints: 10, DecayFactor: 1},
	})
	if overflow.Score != 10000 {
		t.Errorf("expected score clamped to 10000, got %d", overflow.Score)
	}
	if overflow.ConfidenceHigh != 10000 {
		t.Errorf("expected high clamped to 10000, got %d", overflow.ConfidenceHigh)
	}
	if overflow.Tier != "elite" {
		t.Errorf("expected elite tier at the ceiling, got %q", overflow.Tier)
	}
}

func TestCombineZeroEffectiveWeight(t *testing.T) {
	a := New(tier.Default())

	res := a.combine(nil)
	if res.Score != 0 || res.SourcesUsed != 0 {
		t.Errorf("expected the zero result, got %+v", res)
	}
	if res.Tier != "explorer" {
		t.Errorf("expected explorer tier, got %q", res.Tier)
	}
}
