package assign

import (
	"math/rand/v2"

	"github.com/justapithecus/dispenser/demand"
)

// Greedy hands full demand to an arbitrarily ordered subset of
// subscribers: it samples a single random permutation and walks it,
// giving each subscriber everything they asked for until the available
// events run out. At most one subscriber ends up partially satisfied.
type Greedy[S comparable] struct{}

// Assign implements Policy.
func (Greedy[S]) Assign(demands *demand.Map[S], eventCount int, rng *rand.Rand) (assigned, remaining *demand.Map[S]) {
	assigned = demand.New[S]()
	remaining = demands.Clone()

	left := eventCount
	order := shuffle(demands.Subscribers(), rng)
	for _, sub := range order {
		if left == 0 {
			break
		}
		want := remaining.Get(sub)
		amount := min(want, left)
		if amount <= 0 {
			continue
		}
		remaining.Subtract(sub, amount)
		assigned.Add(sub, amount)
		left -= amount
	}

	return assigned, remaining
}

var _ Policy[string] = Greedy[string]{}
