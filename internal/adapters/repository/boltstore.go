package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/pkg/metrics"
)

// Default bolt store configuration constants.
const (
	defaultOpenTimeout = 1 * time.Second
	tsKeyLen           = 8
)

// bucketHistory holds one nested bucket per subject; within a subject
// bucket, keys are big-endian millisecond timestamps so a cursor walks
// history in time order.
var bucketHistory = []byte("history")

// BoltStore implements Store on a BoltDB file. Pure Go, single file, no
// external dependencies to operate.
type BoltStore struct {
	db *bbolt.DB

	openTimeout time.Duration
	noSync      bool

	mu     sync.RWMutex
	closed bool
}

// NewBoltStore opens (creating if needed) the history database at path.
func NewBoltStore(path string, opts ...Option) (*BoltStore, error) {
	s := &BoltStore{openTimeout: defaultOpenTimeout}
	for _, opt := range opts {
		opt(s)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: s.openTimeout,
		NoSync:  s.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketHistory)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history bucket: %w", err)
	}
	s.db = db
	return s, nil
}

// Append persists one snapshot, assigning a row id when missing. Writing
// the same (subject, timestamp) twice overwrites the earlier row, so
// bucketed snapshot writes stay idempotent.
func (s *BoltStore) Append(ctx context.Context, snap model.Snapshot) error {
	start := time.Now()
	defer func() {
		metrics.RecordSnapshotAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if snap.SubjectID == "" {
		return fmt.Errorf("append snapshot: missing subject id")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		subjects := tx.Bucket(bucketHistory)
		b, err := subjects.CreateBucketIfNotExists([]byte(snap.SubjectID))
		if err != nil {
			return err
		}
		return b.Put(tsKey(snap.TimestampMs), value)
	})
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	metrics.RecordSnapshotAppend()
	return nil
}

// RecentN returns up to n most recent snapshots for subject, newest first.
func (s *BoltStore) RecentN(ctx context.Context, subjectID string, n int) ([]model.Snapshot, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	defer func() {
		metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var out []model.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory).Bucket([]byte(subjectID))
		if b == nil {
			return nil // no history is an empty answer, not an error
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			snap, err := decodeSnapshot(v)
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return out, nil
}

// Range returns subject snapshots within [fromMs, toMs], oldest first.
// A zero toMs means no upper bound.
func (s *BoltStore) Range(ctx context.Context, subjectID string, fromMs, toMs int64) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	defer func() {
		metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var out []model.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory).Bucket([]byte(subjectID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(tsKey(fromMs)); k != nil; k, v = c.Next() {
			ts := int64(binary.BigEndian.Uint64(k))
			if toMs > 0 && ts > toMs {
				break
			}
			snap, err := decodeSnapshot(v)
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return out, nil
}

// NearestTo returns the subject snapshot closest in time to tsMs.
func (s *BoltStore) NearestTo(ctx context.Context, subjectID string, tsMs int64) (model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Snapshot{}, ErrClosed
	}

	start := time.Now()
	defer func() {
		metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var best model.Snapshot
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory).Bucket([]byte(subjectID))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		// The candidate at or after tsMs and the one just before it are the
		// only two rows that can be nearest.
		afterK, afterV := c.Seek(tsKey(tsMs))
		var beforeK, beforeV []byte
		if afterK != nil {
			beforeK, beforeV = c.Prev()
		} else {
			beforeK, beforeV = c.Last()
		}

		pick := func(k, v []byte) error {
			snap, err := decodeSnapshot(v)
			if err != nil {
				return err
			}
			d := absDiff(int64(binary.BigEndian.Uint64(k)), tsMs)
			if !found || d < absDiff(best.TimestampMs, tsMs) {
				best = snap
				found = true
			}
			return nil
		}
		if afterK != nil {
			if err := pick(afterK, afterV); err != nil {
				return err
			}
		}
		if beforeK != nil {
			if err := pick(beforeK, beforeV); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("query history: %w", err)
	}
	if !found {
		return model.Snapshot{}, ErrNotFound
	}
	return best, nil
}

// Count returns the total number of stored snapshots across subjects.
func (s *BoltStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}

	total := 0
	_ = s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHistory).ForEachBucket(func(name []byte) error {
			if b := tx.Bucket(bucketHistory).Bucket(name); b != nil {
				total += b.Stats().KeyN
			}
			return nil
		})
	})
	return total
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func tsKey(tsMs int64) []byte {
	k := make([]byte, tsKeyLen)
	binary.BigEndian.PutUint64(k, uint64(tsMs))
	return k
}

func decodeSnapshot(v []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(v, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
