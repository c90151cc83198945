// Package dedupe tracks recently written snapshot buckets.
package dedupe

// Option applies a configuration option to the memory guard.
type Option func(*memoryGuard)

// WithMaxSize bounds how many keys the guard remembers before the oldest
// are evicted. Values below 1 are ignored.
func WithMaxSize(maxSize int) Option {
	return func(g *memoryGuard) {
		if maxSize > 0 {
			g.maxSize = maxSize
		}
	}
}
