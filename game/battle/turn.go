package battle

import (
	"math/rand"
	"sort"
)

// TurnOrder arbitrates between units that became ready on the same tick.
type TurnOrder interface {
	// Order returns the dispatch order. The input slice may be reordered.
	Order(ready []*Unit, rng *rand.Rand) []*Unit
}

// DefaultTurnOrder sorts by speed, then readiness, both descending, and
// breaks remaining ties with one random draw per unit.
type DefaultTurnOrder struct{}

func (DefaultTurnOrder) Order(ready []*Unit, rng *rand.Rand) []*Unit {
	type entry struct {
		unit *Unit
		tie  float64
	}
	entries := make([]entry, len(ready))
	for i, u := range ready {
		entries[i] = entry{unit: u, tie: rng.Float64()}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].unit, entries[j].unit
		if a.Stats.Spd != b.Stats.Spd {
			return a.Stats.Spd > b.Stats.Spd
		}
		if a.ATB != b.ATB {
			return a.ATB > b.ATB
		}
		return entries[i].tie < entries[j].tie
	})

	for i, e := range entries {
		ready[i] = e.unit
	}
	return ready
}
