// Package assign implements the assignment policies (C3): pure functions
// that, given current demand and a fixed number of available events,
// decide how many events each subscriber receives. Policies never mutate
// their input demand map; randomness is their only source of
// non-determinism, and it is always taken from an explicit, injectable
// source so callers can seed it for reproducible tests.
package assign

import (
	"math/rand/v2"

	"github.com/justapithecus/dispenser/demand"
)

// Policy decides how to split eventCount events across the subscribers
// named in demands. It returns the portion assigned to each subscriber
// and the portion left unmet, such that for every subscriber s:
//
//	assigned.Get(s) + remaining.Get(s) == demands.Get(s)
//
// and assigned.Total() == min(demands.Total(), eventCount).
//
// demands is never mutated.
type Policy[S comparable] interface {
	Assign(demands *demand.Map[S], eventCount int, rng *rand.Rand) (assigned, remaining *demand.Map[S])
}

// shuffle returns a fresh uniformly random permutation of subs. subs is
// not mutated.
func shuffle[S comparable](subs []S, rng *rand.Rand) []S {
	out := make([]S, len(subs))
	copy(out, subs)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
