// Package decay implements exponential time decay of source signals.
//
// A signal's strength halves every halfLifeDays. Collectors apply the factor
// exactly once while building their SourceScore; the aggregator never does.
package decay

import "math"

const msPerDay = 86_400_000.0

// Factor returns the decay multiplier in (0,1] for a signal last updated at
// lastUpdatedMs, evaluated at nowMs, with the given half-life in days.
//
// A future timestamp (clock skew) counts as age zero and yields 1.0; the
// factor never exceeds 1. A non-positive half-life means the signal never
// decays, so the function cannot divide by zero or produce NaN.
func Factor(lastUpdatedMs, nowMs int64, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1.0
	}
	ageDays := float64(nowMs-lastUpdatedMs) / msPerDay
	if ageDays <= 0 {
		return 1.0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// AgeDays returns how old a timestamp is at nowMs, clamped at zero.
func AgeDays(lastUpdatedMs, nowMs int64) float64 {
	age := float64(nowMs-lastUpdatedMs) / msPerDay
	if age < 0 {
		return 0
	}
	return age
}
