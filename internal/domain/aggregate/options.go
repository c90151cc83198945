// Package aggregate combines per-source scores into one reputation result.
package aggregate

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTrimSigma sets how many standard deviations a score must stray from
// the weighted mean before it is an outlier candidate.
func WithTrimSigma(sigma float64) Option {
	return func(a *Aggregator) {
		if sigma > 0 {
			a.trimSigma = sigma
		}
	}
}

// WithMinTrimmablePoints sets the data point count below which an outlier
// candidate may actually be trimmed. Sources at or above the threshold are
// kept no matter how far they deviate.
func WithMinTrimmablePoints(points int) Option {
	return func(a *Aggregator) {
		if points > 0 {
			a.minTrimmablePoints = points
		}
	}
}

// WithMinSourcesForTrim sets the smallest source set on which outlier
// trimming runs at all.
func WithMinSourcesForTrim(count int) Option {
	return func(a *Aggregator) {
		if count > 1 {
			a.minSourcesForTrim = count
		}
	}
}

// WithShrinkagePoints sets the evidence scale of the confidence interval:
// the data point count at which the interval has narrowed to 1/sqrt(2) of
// its zero-evidence width.
func WithShrinkagePoints(points float64) Option {
	return func(a *Aggregator) {
		if points > 0 {
			a.shrinkagePoints = points
		}
	}
}
