// Package repository defines the score history store interface and errors.
//
// History is strictly append-only: the engine produces immutable snapshots
// and this layer shapes and persists them. No scoring logic lives here.
package repository

import (
	"context"

	"github.com/okian/repute/internal/domain/model"
)

// Store provides append-only access to per-subject score snapshots.
type Store interface {
	// Append persists one snapshot. An empty snapshot ID is assigned by the
	// store. Appending to the same (subject, timestamp) overwrites in place,
	// which keeps bucketed writes idempotent under at-least-once scheduling.
	Append(ctx context.Context, snap model.Snapshot) error

	// RecentN returns up to n most recent snapshots for subject, newest
	// first. Returns ErrInvalidLimit when n < 1.
	RecentN(ctx context.Context, subjectID string, n int) ([]model.Snapshot, error)

	// Range returns snapshots for subject with fromMs <= timestamp <= toMs,
	// oldest first. A zero toMs means no upper bound.
	Range(ctx context.Context, subjectID string, fromMs, toMs int64) ([]model.Snapshot, error)

	// NearestTo returns the snapshot whose timestamp is closest to tsMs.
	// Returns ErrNotFound when the subject has no history.
	NearestTo(ctx context.Context, subjectID string, tsMs int64) (model.Snapshot, error)

	// Count returns the total number of stored snapshots.
	Count(ctx context.Context) int

	// Close releases the underlying storage.
	Close() error
}
