// Package dedupe tracks recently written snapshot buckets so at-least-once
// scheduling never appends the same (subject, time bucket) twice.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Guard records seen keys to keep snapshot writes idempotent per bucket.
type Guard interface {
	// SeenAndRecord atomically checks whether key was seen and records it
	// if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key, allowing a retry. Used when a write was
	// marked seen but then failed to persist.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key builds the idempotency key for a subject's snapshot bucket.
func Key(subjectID string, bucketStartMs int64) string {
	return fmt.Sprintf("%s@%d", subjectID, bucketStartMs)
}

// memoryGuard implements Guard with a bounded map and FIFO eviction.
// Bucket keys age out naturally, so a simple insertion-order ring is enough.
type memoryGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	next    int
	maxSize int
	size    atomic.Int64
}

// NewMemoryGuard creates an in-memory guard with configuration options.
func NewMemoryGuard(opts ...Option) Guard {
	g := &memoryGuard{maxSize: 50_000}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]struct{}, g.maxSize)
	g.order = make([]string, g.maxSize)
	return g
}

func (g *memoryGuard) SeenAndRecord(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; ok {
		return true
	}

	// Evict the slot's previous occupant once the ring wraps.
	if old := g.order[g.next]; old != "" {
		delete(g.seen, old)
		g.size.Add(-1)
	}
	g.order[g.next] = key
	g.next = (g.next + 1) % g.maxSize
	g.seen[key] = struct{}{}
	g.size.Add(1)
	return false
}

func (g *memoryGuard) Unrecord(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; !ok {
		return
	}
	delete(g.seen, key)
	g.size.Add(-1)
	// The ring slot keeps the stale key; eviction treats it as absent.
	for i := range g.order {
		if g.order[i] == key {
			g.order[i] = ""
			break
		}
	}
}

func (g *memoryGuard) Size() int64 {
	return g.size.Load()
}
