package sources

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/repute/internal/domain/decay"
	"github.com/okian/repute/internal/domain/model"
)

// Staking formula constants. Commitment weighs each stake by how long it is
// locked, with a year counting as full commitment per coin.
const (
	stakeFullLockDays        = 365
	stakeFullCommitmentCents = 5_000_000 // saturates at $50k committed for a year
)

// Stake is one staking observation about a subject.
type Stake struct {
	SubjectID   string `json:"subject_id"`
	AmountCents int64  `json:"amount_cents"`
	LockDays    int    `json:"lock_days"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// StakeBook is the backing query a staking collector reads from.
type StakeBook interface {
	StakesFor(ctx context.Context, subjectID string) ([]Stake, error)
}

// StakeCollector scores a subject's staking commitment: capital at risk,
// scaled by lock duration and decayed by recency.
type StakeCollector struct {
	book StakeBook
	cfg  Settings
}

// NewStakeCollector creates a staking collector over the given book.
func NewStakeCollector(book StakeBook, cfg Settings) *StakeCollector {
	return &StakeCollector{book: book, cfg: cfg}
}

// Name identifies the source this collector speaks for.
func (c *StakeCollector) Name() string { return SourceStaking }

// Collect builds the staking contribution for a subject.
func (c *StakeCollector) Collect(ctx context.Context, subjectID string, nowMs int64) (model.SourceScore, error) {
	stakes, err := c.book.StakesFor(ctx, subjectID)
	if err != nil {
		return model.SourceScore{}, fmt.Errorf("query stakes: %w", err)
	}
	n := len(stakes)
	if n == 0 {
		return model.EmptySignal(SourceStaking), nil
	}

	var commitment float64
	var last int64
	for _, s := range stakes {
		if s.AmountCents > 0 {
			lock := math.Min(1, float64(s.LockDays)/stakeFullLockDays)
			commitment += float64(s.AmountCents) * lock
		}
		if s.TimestampMs > last {
			last = s.TimestampMs
		}
	}

	level := math.Min(1, commitment/stakeFullCommitmentCents)
	base := level * model.MaxScore

	factor := decay.Factor(last, nowMs, c.cfg.HalfLifeDays)
	return model.SourceScore{
		Source:      SourceStaking,
		RawScore:    base * factor,
		Weight:      c.cfg.Weight,
		Confidence:  confidenceFor(n, c.cfg.MinPointsForFullConfidence),
		DataPoints:  n,
		DecayFactor: factor,
		LastUpdated: last,
	}, nil
}
