package prize

import (
	"math/rand"

	"omnilypro-gaming/pkg/errutil"
)

// Selector draws a single entry from a weighted prize table.
type Selector struct {
	randFn func() float64
}

func NewSelector() *Selector {
	return &Selector{randFn: rand.Float64}
}

// NewSelectorWithRand injects the random source, used by tests and by game
// engines that need reproducible draws.
func NewSelectorWithRand(randFn func() float64) *Selector {
	return &Selector{randFn: randFn}
}

// Pick draws one entry with probability weight/sum(weights), walking the
// table in declared order and returning the first entry whose cumulative
// weight exceeds the drawn value.
//
// An empty table, an all-zero table, or any negative weight is a
// configuration error, never a silent fallback to the first entry.
func (s *Selector) Pick(entries []Entry) (Entry, error) {
	var total int64
	for _, e := range entries {
		if e.Weight < 0 {
			return Entry{}, errutil.UnprocessableEntity("prize table contains a negative weight", nil)
		}
		total += e.Weight
	}

	if len(entries) == 0 || total == 0 {
		return Entry{}, errutil.NotFound("prize table is not configured", nil)
	}

	r := s.randFn() * float64(total)

	var cumulative float64
	for _, e := range entries {
		cumulative += float64(e.Weight)
		if r < cumulative {
			return e, nil
		}
	}

	// r can only land here through float rounding at the upper bound.
	return entries[len(entries)-1], nil
}
