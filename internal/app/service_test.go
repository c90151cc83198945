package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/repute/internal/adapters/sources"
	service "github.com/okian/repute/internal/app"
	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const testNowMs = int64(1_700_000_000_000)

// testClock is shared with worker goroutines, so reads and writes go
// through an atomic.
type testClock struct {
	ms atomic.Int64
}

func newTestClock(ms int64) *testClock {
	c := &testClock{}
	c.ms.Store(ms)
	return c
}

func (c *testClock) now() time.Time { return time.UnixMilli(c.ms.Load()) }

func (c *testClock) advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

func startTestService(t *testing.T, clock *testClock) *service.Service {
	t.Helper()
	svc := service.New(
		service.WithHistoryPath(filepath.Join(t.TempDir(), "history.db")),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithCollectTimeout(time.Second),
		service.WithSnapshotBucket(time.Hour),
		service.WithClock(clock.now),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("failed to start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func paymentFact(subjectID string, tsMs int64, settled bool) sources.Fact {
	return sources.Fact{
		Source:      sources.SourcePayments,
		SubjectID:   subjectID,
		TimestampMs: tsMs,
		AmountCents: 50_000,
		Settled:     settled,
	}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a configured service", t, func() {
		ctx := context.Background()
		clock := newTestClock(testNowMs)
		svc := startTestService(t, clock)

		Convey("When it has started without explicit source settings", func() {
			Convey("Then every known source has a collector wired", func() {
				So(len(svc.Registry().Collectors()), ShouldEqual, len(sources.Names()))
			})
		})

		Convey("When it has started", func() {
			stats := svc.GetStats()

			Convey("Then stats reflect a running service", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["workerCount"], ShouldEqual, 2)
				So(stats, ShouldContainKey, "queueLength")
				So(stats, ShouldContainKey, "trackedSubjects")
				So(stats, ShouldContainKey, "factCount")
				So(stats, ShouldContainKey, "snapshotCount")
			})
		})

		Convey("When starting again", func() {
			err := svc.Start(ctx)

			Convey("Then the second start is a no-op", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When stopped", func() {
			svc.Stop()

			Convey("Then stats report it down and stopping again is safe", func() {
				So(svc.GetStats()["started"], ShouldBeFalse)
				So(svc.Stop, ShouldNotPanic)
			})
		})
	})
}

func TestServiceEvaluate(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		clock := newTestClock(testNowMs)
		svc := startTestService(t, clock)

		Convey("When evaluating a subject nobody has reported on", func() {
			res, err := svc.Evaluate(ctx, "ghost")

			Convey("Then the result is the cold-start baseline", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldEqual, 0)
				So(res.Tier, ShouldEqual, "explorer")
				So(res.SourcesUsed, ShouldEqual, 0)
			})
		})

		Convey("When facts have been recorded for a subject", func() {
			for i := 0; i < 30; i++ {
				f := paymentFact("merchant-1", testNowMs-int64(i)*86_400_000, true)
				So(svc.RecordFact(ctx, f), ShouldBeNil)
			}
			for i := 0; i < 8; i++ {
				So(svc.RecordFact(ctx, sources.Fact{
					Source:      sources.SourceReviews,
					SubjectID:   "merchant-1",
					TimestampMs: testNowMs - int64(i)*86_400_000,
					Rating:      4.5,
				}), ShouldBeNil)
			}

			res, err := svc.Evaluate(ctx, "merchant-1")

			Convey("Then the aggregate draws on the recorded sources", func() {
				So(err, ShouldBeNil)
				So(res.SourcesUsed, ShouldEqual, 2)
				So(res.Score, ShouldBeGreaterThan, 0)
				So(res.Score, ShouldBeLessThanOrEqualTo, model.MaxScore)
				So(res.Tier, ShouldNotBeEmpty)
				So(res.ConfidenceLow, ShouldBeLessThanOrEqualTo, res.Score)
				So(res.ConfidenceHigh, ShouldBeGreaterThanOrEqualTo, res.Score)
			})

			Convey("Then repeated evaluation of the same facts agrees", func() {
				again, err := svc.Evaluate(ctx, "merchant-1")
				So(err, ShouldBeNil)
				So(again.Score, ShouldEqual, res.Score)
				So(again.Tier, ShouldEqual, res.Tier)
			})
		})

		Convey("When recording a fact for an unknown source", func() {
			err := svc.RecordFact(ctx, sources.Fact{
				Source:      "gossip",
				SubjectID:   "merchant-1",
				TimestampMs: testNowMs,
			})

			Convey("Then the fact is rejected", func() {
				So(errors.Is(err, sources.ErrUnknownSource), ShouldBeTrue)
			})
		})
	})
}

func TestServiceSnapshots(t *testing.T) {
	Convey("Given a running service and an evaluated subject", t, func() {
		ctx := context.Background()
		clock := newTestClock(testNowMs)
		svc := startTestService(t, clock)

		res := model.AggregationResult{Score: 6286, ConfidenceLow: 5800, ConfidenceHigh: 6700, Tier: "operator", SourcesUsed: 2}

		Convey("When recording a snapshot twice in the same bucket", func() {
			first, err1 := svc.RecordSnapshot(ctx, "merchant-snap", res)
			second, err2 := svc.RecordSnapshot(ctx, "merchant-snap", res)

			Convey("Then only the first write lands", func() {
				So(err1, ShouldBeNil)
				So(first, ShouldBeTrue)
				So(err2, ShouldBeNil)
				So(second, ShouldBeFalse)

				snaps, err := svc.History(ctx, "merchant-snap", 10)
				So(err, ShouldBeNil)
				So(len(snaps), ShouldEqual, 1)
				So(snaps[0].Score, ShouldEqual, 6286)
				So(snaps[0].Tier, ShouldEqual, "operator")
			})

			Convey("And when the clock moves into the next bucket", func() {
				clock.advance(time.Hour)
				third, err := svc.RecordSnapshot(ctx, "merchant-snap", res)

				Convey("Then a new snapshot is accepted", func() {
					So(err, ShouldBeNil)
					So(third, ShouldBeTrue)

					snaps, err := svc.History(ctx, "merchant-snap", 10)
					So(err, ShouldBeNil)
					So(len(snaps), ShouldEqual, 2)
				})
			})
		})

		Convey("When snapshots span several buckets", func() {
			for i := 0; i < 4; i++ {
				ok, err := svc.RecordSnapshot(ctx, "merchant-range", res)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				clock.advance(time.Hour)
			}

			Convey("Then the range query returns them oldest first", func() {
				snaps, err := svc.HistoryRange(ctx, "merchant-range", 0, 0)
				So(err, ShouldBeNil)
				So(len(snaps), ShouldEqual, 4)
				So(snaps[0].TimestampMs, ShouldBeLessThan, snaps[3].TimestampMs)
			})

			Convey("Then the nearest query lands on a real bucket", func() {
				snap, err := svc.HistoryNearest(ctx, "merchant-range", testNowMs)
				So(err, ShouldBeNil)
				So(snap.Score, ShouldEqual, 6286)
			})

			Convey("Then a history limit beyond the cap is clamped, not failed", func() {
				snaps, err := svc.History(ctx, "merchant-range", 1_000_000)
				So(err, ShouldBeNil)
				So(len(snaps), ShouldEqual, 4)
			})
		})
	})
}

func TestServiceRescoreQueue(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		clock := newTestClock(testNowMs)
		svc := startTestService(t, clock)

		Convey("When enqueueing a re-score", func() {
			ok := svc.EnqueueRescore(ctx, "merchant-1", "manual")

			Convey("Then the job is accepted", func() {
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When recording facts for several subjects", func() {
			So(svc.RecordFact(ctx, paymentFact("merchant-a", testNowMs, true)), ShouldBeNil)
			So(svc.RecordFact(ctx, paymentFact("merchant-b", testNowMs, true)), ShouldBeNil)
			So(svc.RecordFact(ctx, paymentFact("merchant-b", testNowMs-1000, true)), ShouldBeNil)

			Convey("Then each subject is tracked exactly once", func() {
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					if svc.GetStats()["trackedSubjects"] == 2 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(svc.GetStats()["trackedSubjects"], ShouldEqual, 2)
				So(svc.GetStats()["factCount"], ShouldEqual, 3)
			})
		})
	})
}
