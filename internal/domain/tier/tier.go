// Package tier maps final reputation scores to named tiers.
//
// The Table here is the single place tier boundaries are encoded. Every band
// covers the half-open interval [Min, Max) except the top band, which also
// includes its upper bound, so a score of exactly 10000 still classifies.
// Presentation layers derive tiers and progress by calling Classify; they
// must never re-encode the ranges themselves.
package tier

import (
	"fmt"

	"github.com/okian/repute/internal/domain/model"
)

// Band is one row of the tier table. Min is inclusive; Max is exclusive for
// every band but the last, where it is inclusive.
type Band struct {
	Name string `json:"name" koanf:"name"`
	Min  int    `json:"min"  koanf:"min"`
	Max  int    `json:"max"  koanf:"max"`
}

// Table is a validated, immutable tier table.
type Table struct {
	bands []Band
}

// NewTable builds a Table after checking the bands are total and
// non-overlapping: sorted, contiguous, starting at the score floor and
// ending at the score ceiling. Every integer score maps to exactly one band.
func NewTable(bands []Band) (*Table, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidTable)
	}
	if bands[0].Min != model.MinScore {
		return nil, fmt.Errorf("%w: first band starts at %d, want %d", ErrInvalidTable, bands[0].Min, model.MinScore)
	}
	for i, b := range bands {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: band %d has no name", ErrInvalidTable, i)
		}
		if b.Max <= b.Min {
			return nil, fmt.Errorf("%w: band %q has empty range [%d,%d)", ErrInvalidTable, b.Name, b.Min, b.Max)
		}
		if i > 0 && b.Min != bands[i-1].Max {
			return nil, fmt.Errorf("%w: gap or overlap between %q and %q", ErrInvalidTable, bands[i-1].Name, b.Name)
		}
	}
	if bands[len(bands)-1].Max != model.MaxScore {
		return nil, fmt.Errorf("%w: last band ends at %d, want %d", ErrInvalidTable, bands[len(bands)-1].Max, model.MaxScore)
	}
	out := make([]Band, len(bands))
	copy(out, bands)
	return &Table{bands: out}, nil
}

// Default returns the standard five-band table.
func Default() *Table {
	t, err := NewTable([]Band{
		{Name: "explorer", Min: 0, Max: 2500},
		{Name: "builder", Min: 2500, Max: 5000},
		{Name: "operator", Min: 5000, Max: 7500},
		{Name: "expert", Min: 7500, Max: 9000},
		{Name: "elite", Min: 9000, Max: 10000},
	})
	if err != nil {
		panic(err) // the built-in table is known good
	}
	return t
}

// Classify maps a score to its band name. The input must already be a
// clamped integer in the score domain; an out-of-range value is a
// programming error upstream and panics rather than being silently
// clamped, so the bug surfaces in testing instead of corrupting output.
func (t *Table) Classify(score int) string {
	if score < model.MinScore || score > model.MaxScore {
		panic(fmt.Sprintf("tier: score %d outside [%d,%d]; caller must clamp before classifying", score, model.MinScore, model.MaxScore))
	}
	for i, b := range t.bands {
		if score < b.Max || i == len(t.bands)-1 {
			return b.Name
		}
	}
	// Unreachable: the table is total over the score domain.
	panic(fmt.Sprintf("tier: score %d matched no band", score))
}

// Bands returns a copy of the table rows for display layers.
func (t *Table) Bands() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}

// Progress describes where a score sits relative to the next band up.
type Progress struct {
	Tier   string `json:"tier"`
	Next   string `json:"next_tier,omitempty"`
	ToNext int    `json:"points_to_next"`
}

// ProgressFor derives current tier, next tier, and remaining points from the
// same classification rule Classify uses, so a progress display can never
// disagree with the tier label it sits beside.
func (t *Table) ProgressFor(score int) Progress {
	name := t.Classify(score)
	for i, b := range t.bands {
		if b.Name != name {
			continue
		}
		if i == len(t.bands)-1 {
			return Progress{Tier: name}
		}
		return Progress{
			Tier:   name,
			Next:   t.bands[i+1].Name,
			ToNext: b.Max - score,
		}
	}
	panic(fmt.Sprintf("tier: band %q not in table", name))
}
