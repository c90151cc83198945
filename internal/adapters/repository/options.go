// Package repository defines the score history store interface and errors.
package repository

import "time"

// Option applies a configuration option to the BoltStore.
type Option func(*BoltStore)

// WithOpenTimeout bounds how long opening the database file may block on
// another process's lock.
func WithOpenTimeout(d time.Duration) Option {
	return func(s *BoltStore) {
		if d > 0 {
			s.openTimeout = d
		}
	}
}

// WithNoSync disables fsync on every commit. Only suitable for tests and
// throwaway data; a crash loses recent snapshots.
func WithNoSync() Option {
	return func(s *BoltStore) {
		s.noSync = true
	}
}
