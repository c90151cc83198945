package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/repute/internal/adapters/sources"
	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeCollector is a scriptable collector for fan-out tests.
type fakeCollector struct {
	name     string
	score    model.SourceScore
	err      error
	panicMsg string
	delay    time.Duration
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Collect(_ context.Context, _ string, _ int64) (model.SourceScore, error) {
	if f.delay > 0 {
		// Deliberately ignores the context while it sleeps.
		time.Sleep(f.delay)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.score, f.err
}

func goodScore(name string) model.SourceScore {
	return model.SourceScore{
		Source:      name,
		RawScore:    5000,
		Weight:      0.5,
		Confidence:  1,
		DataPoints:  10,
		DecayFactor: 1,
		LastUpdated: 1_700_000_000_000,
	}
}

func TestCollectDeadlineReleasesStuckCollector(t *testing.T) {
	s := &Service{logger: logger.Get(), clock: time.Now}

	good := &fakeCollector{name: "payments", score: goodScore("payments")}
	stuck := &fakeCollector{name: "staking", delay: 10 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := s.collect(ctx, []sources.Collector{good, stuck}, "subject-1", 1_700_000_000_000)
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("collect took %v, expected it to return at the deadline", elapsed)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 result slots, got %d", len(results))
	}
	if results[0].failed {
		t.Error("expected the fast collector to succeed")
	}
	if results[0].score.RawScore != 5000 {
		t.Errorf("expected fast collector score 5000, got %v", results[0].score.RawScore)
	}
	if !results[1].failed {
		t.Error("expected the collector still pending at the deadline to be marked failed")
	}
}

func TestCollectIsolatesFailures(t *testing.T) {
	s := &Service{logger: logger.Get(), clock: time.Now}

	good := &fakeCollector{name: "payments", score: goodScore("payments")}
	broken := &fakeCollector{name: "reviews", err: errors.New("backend down")}
	panicky := &fakeCollector{name: "quality", panicMsg: "bad invariant"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := s.collect(ctx, []sources.Collector{good, broken, panicky}, "subject-1", 1_700_000_000_000)

	if results[0].failed {
		t.Error("expected the healthy collector to be unaffected by its neighbors")
	}
	if !results[1].failed {
		t.Error("expected the erroring collector to be marked failed")
	}
	if !results[2].failed {
		t.Error("expected the panicking collector to be marked failed")
	}
}
