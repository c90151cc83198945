package sources

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/repute/internal/domain/decay"
	"github.com/okian/repute/internal/domain/model"
)

// Payment formula constants. Settled share rewards reliability; volume
// saturates so a single large transfer cannot max the source alone.
const (
	paymentSettledShare    = 0.6
	paymentVolumeShare     = 0.4
	paymentFullVolumeCents = 1_000_000 // volume component saturates at $10k
)

// Payment is one payment observation about a subject.
type Payment struct {
	SubjectID   string `json:"subject_id"`
	AmountCents int64  `json:"amount_cents"`
	Settled     bool   `json:"settled"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// PaymentLedger is the backing query a payment collector reads from.
type PaymentLedger interface {
	PaymentsFor(ctx context.Context, subjectID string) ([]Payment, error)
}

// PaymentCollector scores a subject's payment history: how much of it
// settled cleanly and how much volume it carried, decayed by recency.
type PaymentCollector struct {
	ledger PaymentLedger
	cfg    Settings
}

// NewPaymentCollector creates a payment collector over the given ledger.
func NewPaymentCollector(ledger PaymentLedger, cfg Settings) *PaymentCollector {
	return &PaymentCollector{ledger: ledger, cfg: cfg}
}

// Name identifies the source this collector speaks for.
func (c *PaymentCollector) Name() string { return SourcePayments }

// Collect builds the payments contribution for a subject.
func (c *PaymentCollector) Collect(ctx context.Context, subjectID string, nowMs int64) (model.SourceScore, error) {
	payments, err := c.ledger.PaymentsFor(ctx, subjectID)
	if err != nil {
		return model.SourceScore{}, fmt.Errorf("query payments: %w", err)
	}
	n := len(payments)
	if n == 0 {
		return model.EmptySignal(SourcePayments), nil
	}

	var settled int
	var totalCents int64
	var last int64
	for _, p := range payments {
		if p.Settled {
			settled++
		}
		if p.AmountCents > 0 {
			totalCents += p.AmountCents
		}
		if p.TimestampMs > last {
			last = p.TimestampMs
		}
	}

	settledRatio := float64(settled) / float64(n) // n checked above
	volume := math.Min(1, float64(totalCents)/paymentFullVolumeCents)
	base := (paymentSettledShare*settledRatio + paymentVolumeShare*volume) * model.MaxScore

	factor := decay.Factor(last, nowMs, c.cfg.HalfLifeDays)
	return model.SourceScore{
		Source:      SourcePayments,
		RawScore:    base * factor,
		Weight:      c.cfg.Weight,
		Confidence:  confidenceFor(n, c.cfg.MinPointsForFullConfidence),
		DataPoints:  n,
		DecayFactor: factor,
		LastUpdated: last,
	}, nil
}
