// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Provide Load(ctx) to layer file and environment overrides on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"

	"github.com/okian/repute/internal/adapters/sources"
	"github.com/okian/repute/internal/domain/tier"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory re-score job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of re-score workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the snapshot idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// CollectTimeoutMS bounds one collector fan-out, per evaluation.
	CollectTimeoutMS int `koanf:"collect_timeout_ms"`

	// HistoryPath locates the bbolt file holding score history.
	HistoryPath string `koanf:"history_path"`

	// MaxHistoryLimit caps GET /history?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// SnapshotBucketMinutes sets the history bucket width. At most one
	// snapshot per subject is kept per bucket.
	SnapshotBucketMinutes int `koanf:"snapshot_bucket_minutes"`

	// SnapshotCron schedules periodic re-scoring of tracked subjects.
	// Empty disables the schedule.
	SnapshotCron string `koanf:"snapshot_cron"`

	// TrimSigma sets the outlier cut in weighted standard deviations.
	TrimSigma float64 `koanf:"trim_sigma"`

	// TrimMinDataPoints protects well-evidenced sources from trimming.
	TrimMinDataPoints int `koanf:"trim_min_data_points"`

	// TrimMinSources disables trimming below this many usable sources.
	TrimMinSources int `koanf:"trim_min_sources"`

	// IntervalShrinkPoints controls how fast the confidence interval
	// narrows as total evidence grows.
	IntervalShrinkPoints float64 `koanf:"interval_shrink_points"`

	// Sources maps source names to their collector settings.
	Sources map[string]sources.Settings `koanf:"sources"`

	// Tiers holds the classification bands, low to high. Empty means the
	// built-in default table.
	Tiers []tier.Band `koanf:"tiers"`
}

// New creates a Config with defaults.
func New() *Config {
	c := &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            100_000,
		CollectTimeoutMS:      2_000,
		HistoryPath:           "repute-history.db",
		MaxHistoryLimit:       100,
		SnapshotBucketMinutes: 60,
		SnapshotCron:          "@hourly",
		TrimSigma:             2.0,
		TrimMinDataPoints:     5,
		TrimMinSources:        3,
		IntervalShrinkPoints:  10.0,
		Sources:               sources.DefaultSettings(),
		Tiers:                 tier.Default().Bands(),
	}
	return c
}
