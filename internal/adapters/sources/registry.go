package sources

import (
	"context"
	"fmt"
	"strings"
)

// Fact is one raw observation submitted for a subject. Source selects which
// of the optional fields are read; the rest are ignored.
type Fact struct {
	Source      string  `json:"source"`
	SubjectID   string  `json:"subject_id"`
	TimestampMs int64   `json:"timestamp_ms"`
	AmountCents int64   `json:"amount_cents,omitempty"`
	Settled     bool    `json:"settled,omitempty"`
	LockDays    int     `json:"lock_days,omitempty"`
	Issuer      string  `json:"issuer,omitempty"`
	Revoked     bool    `json:"revoked,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Success     bool    `json:"success,omitempty"`
	LatencyMs   float64 `json:"latency_ms,omitempty"`
}

// Validate checks the fields the fact's source will actually read.
func (f Fact) Validate() error {
	if strings.TrimSpace(f.SubjectID) == "" {
		return fmt.Errorf("%w: missing subject_id", ErrInvalidFact)
	}
	if f.TimestampMs <= 0 {
		return fmt.Errorf("%w: missing timestamp_ms", ErrInvalidFact)
	}
	switch f.Source {
	case SourcePayments, SourceStaking:
		if f.AmountCents < 0 {
			return fmt.Errorf("%w: negative amount_cents", ErrInvalidFact)
		}
	case SourceCredentials:
		if strings.TrimSpace(f.Issuer) == "" {
			return fmt.Errorf("%w: missing issuer", ErrInvalidFact)
		}
	case SourceReviews:
		if f.Rating < 0 || f.Rating > MaxRating {
			return fmt.Errorf("%w: rating %v outside [0,%v]", ErrInvalidFact, f.Rating, MaxRating)
		}
	case SourceQuality:
		if f.LatencyMs < 0 {
			return fmt.Errorf("%w: negative latency_ms", ErrInvalidFact)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, f.Source)
	}
	return nil
}

// Registry bundles the reference in-memory stores with one collector per
// configured source. Production deployments can skip the Registry entirely
// and hand the engine collectors built over their own stores.
type Registry struct {
	payments    *MemoryPaymentLedger
	stakes      *MemoryStakeBook
	credentials *MemoryCredentialDirectory
	reviews     *MemoryReviewFeed
	probes      *MemoryProbeLog

	collectors []Collector
}

// NewRegistry wires a collector for every source present in settings,
// in the fixed Names() order so evaluation is deterministic.
func NewRegistry(settings map[string]Settings) *Registry {
	r := &Registry{
		payments:    NewMemoryPaymentLedger(),
		stakes:      NewMemoryStakeBook(),
		credentials: NewMemoryCredentialDirectory(),
		reviews:     NewMemoryReviewFeed(),
		probes:      NewMemoryProbeLog(),
	}
	for _, name := range Names() {
		cfg, ok := settings[name]
		if !ok {
			continue
		}
		switch name {
		case SourcePayments:
			r.collectors = append(r.collectors, NewPaymentCollector(r.payments, cfg))
		case SourceStaking:
			r.collectors = append(r.collectors, NewStakeCollector(r.stakes, cfg))
		case SourceCredentials:
			r.collectors = append(r.collectors, NewCredentialCollector(r.credentials, cfg))
		case SourceReviews:
			r.collectors = append(r.collectors, NewReviewCollector(r.reviews, cfg))
		case SourceQuality:
			r.collectors = append(r.collectors, NewQualityCollector(r.probes, cfg))
		}
	}
	return r
}

// Collectors returns the wired collectors in evaluation order.
func (r *Registry) Collectors() []Collector {
	return r.collectors
}

// Record validates a fact and appends it to the matching store.
func (r *Registry) Record(ctx context.Context, f Fact) error {
	if err := f.Validate(); err != nil {
		return err
	}
	switch f.Source {
	case SourcePayments:
		r.payments.Record(ctx, Payment{
			SubjectID:   f.SubjectID,
			AmountCents: f.AmountCents,
			Settled:     f.Settled,
			TimestampMs: f.TimestampMs,
		})
	case SourceStaking:
		r.stakes.Record(ctx, Stake{
			SubjectID:   f.SubjectID,
			AmountCents: f.AmountCents,
			LockDays:    f.LockDays,
			TimestampMs: f.TimestampMs,
		})
	case SourceCredentials:
		r.credentials.Record(ctx, Credential{
			SubjectID:  f.SubjectID,
			Issuer:     f.Issuer,
			Revoked:    f.Revoked,
			IssuedAtMs: f.TimestampMs,
		})
	case SourceReviews:
		r.reviews.Record(ctx, Review{
			SubjectID:   f.SubjectID,
			Rating:      f.Rating,
			TimestampMs: f.TimestampMs,
		})
	case SourceQuality:
		r.probes.Record(ctx, Probe{
			SubjectID:   f.SubjectID,
			Success:     f.Success,
			LatencyMs:   f.LatencyMs,
			TimestampMs: f.TimestampMs,
		})
	}
	return nil
}

// FactCount returns the total number of stored facts across all sources.
func (r *Registry) FactCount() int {
	return r.payments.log.size() +
		r.stakes.log.size() +
		r.credentials.log.size() +
		r.reviews.log.size() +
		r.probes.log.size()
}
