package sources

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/repute/internal/domain/decay"
	"github.com/okian/repute/internal/domain/model"
)

// MaxRating is the top of the peer review scale.
const MaxRating = 5.0

// Review is one peer review observed for a subject.
type Review struct {
	SubjectID   string  `json:"subject_id"`
	Rating      float64 `json:"rating"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// ReviewFeed is the backing query a review collector reads from.
type ReviewFeed interface {
	ReviewsFor(ctx context.Context, subjectID string) ([]Review, error)
}

// ReviewCollector scores a subject's peer reviews: the average rating on the
// five-point scale, decayed by recency of the latest review.
type ReviewCollector struct {
	feed ReviewFeed
	cfg  Settings
}

// NewReviewCollector creates a review collector over the given feed.
func NewReviewCollector(feed ReviewFeed, cfg Settings) *ReviewCollector {
	return &ReviewCollector{feed: feed, cfg: cfg}
}

// Name identifies the source this collector speaks for.
func (c *ReviewCollector) Name() string { return SourceReviews }

// Collect builds the reviews contribution for a subject. The zero-review
// case returns the empty signal before any average is taken, so the 0/0
// ratio can never occur.
func (c *ReviewCollector) Collect(ctx context.Context, subjectID string, nowMs int64) (model.SourceScore, error) {
	reviews, err := c.feed.ReviewsFor(ctx, subjectID)
	if err != nil {
		return model.SourceScore{}, fmt.Errorf("query reviews: %w", err)
	}
	n := len(reviews)
	if n == 0 {
		return model.EmptySignal(SourceReviews), nil
	}

	var sum float64
	var last int64
	for _, r := range reviews {
		sum += math.Max(0, math.Min(MaxRating, r.Rating))
		if r.TimestampMs > last {
			last = r.TimestampMs
		}
	}
	avg := sum / float64(n) // n checked above
	base := (avg / MaxRating) * model.MaxScore

	factor := decay.Factor(last, nowMs, c.cfg.HalfLifeDays)
	return model.SourceScore{
		Source:      SourceReviews,
		RawScore:    base * factor,
		Weight:      c.cfg.Weight,
		Confidence:  confidenceFor(n, c.cfg.MinPointsForFullConfidence),
		DataPoints:  n,
		DecayFactor: factor,
		LastUpdated: last,
	}, nil
}
