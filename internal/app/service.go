// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	jobqueue "github.com/okian/repute/internal/adapters/mq/queue"
	workerpool "github.com/okian/repute/internal/adapters/mq/worker"
	repository "github.com/okian/repute/internal/adapters/repository"
	"github.com/okian/repute/internal/adapters/sources"
	"github.com/okian/repute/internal/domain/aggregate"
	"github.com/okian/repute/internal/domain/dedupe"
	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
	"github.com/okian/repute/pkg/logger"
	"github.com/okian/repute/pkg/metrics"
)

// Service implements the API dependencies for the reputation engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry   *sources.Registry
	aggregator *aggregate.Aggregator
	tiers      *tier.Table
	history    repository.Store
	guard      dedupe.Guard
	jobQueue   jobqueue.Queue
	workerPool *workerpool.Pool
	scheduler  *scheduler

	// Tracked subjects, i.e. every subject we have ever seen a fact for.
	subjects map[string]struct{}

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	collectTimeout  time.Duration
	historyPath     string
	bucket          time.Duration
	cronSpec        string
	maxHistoryLimit int
	sourceSettings  map[string]sources.Settings
	trimSigma       float64
	trimMinPoints   int
	trimMinSources  int
	shrinkPoints    float64

	// clock is injectable for tests; it reports evaluation time.
	clock func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of re-score workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the re-score job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the snapshot idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCollectTimeout bounds one collector fan-out.
func WithCollectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.collectTimeout = d
		}
	}
}

// WithHistoryPath locates the bbolt file holding score history.
func WithHistoryPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.historyPath = path
		}
	}
}

// WithSnapshotBucket sets the history bucket width.
func WithSnapshotBucket(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.bucket = d
		}
	}
}

// WithSnapshotCron schedules periodic re-scoring of tracked subjects.
// An empty spec disables the schedule.
func WithSnapshotCron(spec string) Option {
	return func(s *Service) {
		s.cronSpec = spec
	}
}

// WithMaxHistoryLimit caps history page sizes handed to callers.
func WithMaxHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxHistoryLimit = limit
		}
	}
}

// WithSourceSettings sets the per-source collector settings.
func WithSourceSettings(settings map[string]sources.Settings) Option {
	return func(s *Service) {
		if len(settings) > 0 {
			s.sourceSettings = settings
		}
	}
}

// WithTiers sets the classification table.
func WithTiers(t *tier.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.tiers = t
		}
	}
}

// WithTrimSigma sets the outlier cut in weighted standard deviations.
func WithTrimSigma(sigma float64) Option {
	return func(s *Service) {
		if sigma > 0 {
			s.trimSigma = sigma
		}
	}
}

// WithTrimMinDataPoints protects well-evidenced sources from trimming.
func WithTrimMinDataPoints(points int) Option {
	return func(s *Service) {
		if points > 0 {
			s.trimMinPoints = points
		}
	}
}

// WithTrimMinSources disables trimming below this many usable sources.
func WithTrimMinSources(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.trimMinSources = n
		}
	}
}

// WithIntervalShrinkPoints controls confidence interval narrowing.
func WithIntervalShrinkPoints(points float64) Option {
	return func(s *Service) {
		if points > 0 {
			s.shrinkPoints = points
		}
	}
}

// WithClock sets the evaluation clock. Tests use this to pin time.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       10_000,
		dedupeSize:      100_000,
		collectTimeout:  2 * time.Second,
		historyPath:     "repute-history.db",
		bucket:          time.Hour,
		cronSpec:        "",
		maxHistoryLimit: 100,
		trimSigma:       2.0,
		trimMinPoints:   5,
		trimMinSources:  3,
		shrinkPoints:    10.0,
		sourceSettings:  sources.DefaultSettings(),
		tiers:           tier.Default(),
		subjects:        make(map[string]struct{}),
		clock:           time.Now,
		logger:          nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting reputation service...")

	s.registry = sources.NewRegistry(s.sourceSettings)
	s.aggregator = aggregate.New(s.tiers,
		aggregate.WithTrimSigma(s.trimSigma),
		aggregate.WithMinTrimmablePoints(s.trimMinPoints),
		aggregate.WithMinSourcesForTrim(s.trimMinSources),
		aggregate.WithShrinkagePoints(s.shrinkPoints),
	)

	history, err := repository.NewBoltStore(s.historyPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	s.history = history

	s.guard = dedupe.NewMemoryGuard(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.jobQueue = jobqueue.NewMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s, s)
	s.workerPool.Start(ctx)

	if s.cronSpec != "" {
		sched, err := newScheduler(s.cronSpec, s)
		if err != nil {
			return fmt.Errorf("start snapshot schedule: %w", err)
		}
		s.scheduler = sched
		s.scheduler.start()
	}

	s.started = true
	s.logger.Info(ctx, "reputation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("historyPath", s.historyPath),
		logger.Duration("snapshotBucket", s.bucket),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping reputation service...")

	if s.scheduler != nil {
		s.scheduler.stop()
	}

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	if s.jobQueue != nil {
		_ = s.jobQueue.Close()
	}

	if s.history != nil {
		_ = s.history.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "reputation service stopped")
}

// collectorResult pairs one collector's output with its failure state.
type collectorResult struct {
	score  model.SourceScore
	failed bool
}

// Evaluate runs every collector for the subject concurrently and aggregates
// whatever came back. A failing or panicking collector degrades to the empty
// signal; only the total loss of every source is an error.
func (s *Service) Evaluate(ctx context.Context, subjectID string) (model.AggregationResult, error) {
	start := time.Now()
	collectors := s.registry.Collectors()
	nowMs := s.clock().UnixMilli()

	cctx, cancel := context.WithTimeout(ctx, s.collectTimeout)
	defer cancel()

	results := s.collect(cctx, collectors, subjectID, nowMs)

	scores := make([]model.SourceScore, len(collectors))
	failures := 0
	for i, r := range results {
		if r.failed {
			failures++
			scores[i] = model.EmptySignal(collectors[i].Name())
			continue
		}
		scores[i] = r.score
	}
	if len(collectors) > 0 && failures == len(collectors) {
		metrics.RecordEvaluationError()
		return model.AggregationResult{}, fmt.Errorf("%w: subject %s", model.ErrAllSourcesFailed, subjectID)
	}

	res, err := s.aggregator.Aggregate(scores)
	if err != nil {
		metrics.RecordEvaluationError()
		return model.AggregationResult{}, err
	}

	usable := 0
	for _, sc := range scores {
		if sc.Weight > 0 && sc.Confidence > 0 {
			usable++
		}
	}
	for trimmed := usable - res.SourcesUsed; trimmed > 0; trimmed-- {
		metrics.RecordSourceTrimmed()
	}

	metrics.RecordEvaluation()
	metrics.RecordEvaluationLatency(float64(time.Since(start).Milliseconds()))
	return res, nil
}

// collect fans the collectors out concurrently and gathers their results in
// collector order, so identical inputs aggregate identically regardless of
// goroutine scheduling. Every goroutine reports through a buffered channel;
// the fan-in stops waiting at the context deadline and marks still-pending
// slots failed, so a collector that ignores cancellation cannot stall the
// evaluation.
func (s *Service) collect(ctx context.Context, collectors []sources.Collector, subjectID string, nowMs int64) []collectorResult {
	type indexedResult struct {
		i int
		r collectorResult
	}

	// Buffered to collector count so late finishers never leak blocked.
	ch := make(chan indexedResult, len(collectors))
	for i, c := range collectors {
		go func(i int, c sources.Collector) {
			var res collectorResult
			defer func() {
				if r := recover(); r != nil {
					res = collectorResult{failed: true}
					metrics.RecordCollectorFailure(c.Name())
					s.logger.Error(ctx, "collector panicked",
						logger.String("source", c.Name()),
						logger.String("subject", subjectID),
						logger.Any("panic", r),
					)
				}
				ch <- indexedResult{i: i, r: res}
			}()

			collectStart := time.Now()
			score, err := c.Collect(ctx, subjectID, nowMs)
			metrics.RecordCollectorLatency(c.Name(), float64(time.Since(collectStart).Milliseconds()))
			if err != nil {
				res.failed = true
				metrics.RecordCollectorFailure(c.Name())
				s.logger.Warn(ctx, "collector failed, degrading to empty signal",
					logger.String("source", c.Name()),
					logger.String("subject", subjectID),
					logger.Error(err),
				)
				return
			}
			if score.IsEmpty() {
				metrics.RecordCollectorEmptySignal(c.Name())
			}
			res.score = score
		}(i, c)
	}

	results := make([]collectorResult, len(collectors))
	received := make([]bool, len(collectors))
	for n := 0; n < len(collectors); {
		select {
		case d := <-ch:
			results[d.i] = d.r
			received[d.i] = true
			n++
		case <-ctx.Done():
			for i := range results {
				if received[i] {
					continue
				}
				results[i] = collectorResult{failed: true}
				metrics.RecordCollectorFailure(collectors[i].Name())
				s.logger.Warn(ctx, "collector still pending at deadline, degrading to empty signal",
					logger.String("source", collectors[i].Name()),
					logger.String("subject", subjectID),
				)
			}
			return results
		}
	}
	return results
}

// RecordSnapshot persists one history snapshot for the subject's current
// time bucket. It reports false when the bucket was already written, which
// makes re-scores within a bucket idempotent.
func (s *Service) RecordSnapshot(ctx context.Context, subjectID string, res model.AggregationResult) (bool, error) {
	bucketMs := s.bucket.Milliseconds()
	nowMs := s.clock().UnixMilli()
	bucketStart := nowMs - nowMs%bucketMs

	key := dedupe.Key(subjectID, bucketStart)
	if s.guard.SeenAndRecord(ctx, key) {
		metrics.RecordSnapshotSkip()
		return false, nil
	}

	snap := model.Snapshot{
		SubjectID:   subjectID,
		TimestampMs: bucketStart,
		Score:       res.Score,
		Tier:        res.Tier,
	}
	if err := s.history.Append(ctx, snap); err != nil {
		// Give the bucket back so a retry can write it.
		s.guard.Unrecord(ctx, key)
		return false, err
	}
	return true, nil
}

// RecordFact ingests one raw fact and queues an asynchronous re-score for
// the subject it belongs to.
func (s *Service) RecordFact(ctx context.Context, f sources.Fact) error {
	if err := s.registry.Record(ctx, f); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.subjects[f.SubjectID]; !ok {
		s.subjects[f.SubjectID] = struct{}{}
		metrics.UpdateTrackedSubjects(len(s.subjects))
	}
	s.mu.Unlock()

	s.EnqueueRescore(ctx, f.SubjectID, "fact")
	return nil
}

// EnqueueRescore queues one re-score job. It reports whether the job was
// accepted; a full or closed queue drops the job.
func (s *Service) EnqueueRescore(ctx context.Context, subjectID, reason string) bool {
	ok := s.jobQueue.Enqueue(ctx, model.Job{
		SubjectID:   subjectID,
		RequestedMs: s.clock().UnixMilli(),
		Reason:      reason,
	})
	if !ok {
		s.logger.Warn(ctx, "re-score job dropped",
			logger.String("subject", subjectID),
			logger.String("reason", reason),
		)
	}
	return ok
}

// enqueueAll queues a re-score for every tracked subject.
func (s *Service) enqueueAll(ctx context.Context, reason string) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.subjects))
	for id := range s.subjects {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.EnqueueRescore(ctx, id, reason)
	}
}

// History returns the most recent snapshots for a subject, newest first.
func (s *Service) History(ctx context.Context, subjectID string, limit int) ([]model.Snapshot, error) {
	if limit < 1 || limit > s.maxHistoryLimit {
		limit = s.maxHistoryLimit
	}
	return s.history.RecentN(ctx, subjectID, limit)
}

// HistoryRange returns snapshots within [fromMs, toMs], oldest first.
// A zero toMs means unbounded.
func (s *Service) HistoryRange(ctx context.Context, subjectID string, fromMs, toMs int64) ([]model.Snapshot, error) {
	return s.history.Range(ctx, subjectID, fromMs, toMs)
}

// HistoryNearest returns the snapshot closest in time to tsMs.
func (s *Service) HistoryNearest(ctx context.Context, subjectID string, tsMs int64) (model.Snapshot, error) {
	return s.history.NearestTo(ctx, subjectID, tsMs)
}

// TierBands exposes the classification table, low band first.
func (s *Service) TierBands() []tier.Band {
	return s.tiers.Bands()
}

// ProgressFor reports the subject's tier standing for a given score.
func (s *Service) ProgressFor(score int) tier.Progress {
	return s.tiers.ProgressFor(score)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["trackedSubjects"] = len(s.subjects)
		stats["factCount"] = s.registry.FactCount()
		stats["snapshotCount"] = s.history.Count(ctx)

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTrackedSubjects(len(s.subjects))
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Registry exposes the fact registry for handlers that need direct access.
func (s *Service) Registry() *sources.Registry {
	return s.registry
}
