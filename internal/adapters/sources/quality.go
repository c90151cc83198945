package sources

import (
	"context"
	"fmt"

	"github.com/okian/repute/internal/domain/decay"
	"github.com/okian/repute/internal/domain/model"
)

// Quality formula constants. Success rate dominates; latency contributes
// fully at or below the target and degrades proportionally beyond it.
const (
	qualitySuccessShare    = 0.7
	qualityLatencyShare    = 0.3
	qualityTargetLatencyMs = 250.0
)

// Probe is one measured API quality observation for a subject.
type Probe struct {
	SubjectID   string  `json:"subject_id"`
	Success     bool    `json:"success"`
	LatencyMs   float64 `json:"latency_ms"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// ProbeLog is the backing query a quality collector reads from.
type ProbeLog interface {
	ProbesFor(ctx context.Context, subjectID string) ([]Probe, error)
}

// QualityCollector scores a subject's measured API quality: success rate
// and latency against a target, decayed by recency.
type QualityCollector struct {
	log ProbeLog
	cfg Settings
}

// NewQualityCollector creates a quality collector over the given probe log.
func NewQualityCollector(log ProbeLog, cfg Settings) *QualityCollector {
	return &QualityCollector{log: log, cfg: cfg}
}

// Name identifies the source this collector speaks for.
func (c *QualityCollector) Name() string { return SourceQuality }

// Collect builds the quality contribution for a subject.
func (c *QualityCollector) Collect(ctx context.Context, subjectID string, nowMs int64) (model.SourceScore, error) {
	probes, err := c.log.ProbesFor(ctx, subjectID)
	if err != nil {
		return model.SourceScore{}, fmt.Errorf("query probes: %w", err)
	}
	n := len(probes)
	if n == 0 {
		return model.EmptySignal(SourceQuality), nil
	}

	successes := 0
	var totalLatency float64
	var last int64
	for _, p := range probes {
		if p.Success {
			successes++
		}
		if p.LatencyMs > 0 {
			totalLatency += p.LatencyMs
		}
		if p.TimestampMs > last {
			last = p.TimestampMs
		}
	}

	successRate := float64(successes) / float64(n) // n checked above
	avgLatency := totalLatency / float64(n)
	latencyScore := 1.0
	if avgLatency > qualityTargetLatencyMs {
		latencyScore = qualityTargetLatencyMs / avgLatency
	}
	base := (qualitySuccessShare*successRate + qualityLatencyShare*latencyScore) * model.MaxScore

	factor := decay.Factor(last, nowMs, c.cfg.HalfLifeDays)
	return model.SourceScore{
		Source:      SourceQuality,
		RawScore:    base * factor,
		Weight:      c.cfg.Weight,
		Confidence:  confidenceFor(n, c.cfg.MinPointsForFullConfidence),
		DataPoints:  n,
		DecayFactor: factor,
		LastUpdated: last,
	}, nil
}
