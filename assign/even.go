package assign

import (
	"math/rand/v2"

	"github.com/justapithecus/dispenser/demand"
)

// Even spreads available events as evenly as possible across demanding
// subscribers, honoring each subscriber's cap. It proceeds in rounds: each
// round computes a per-subscriber batch size from the events and
// subscribers left, visits subscribers in a freshly shuffled order, and
// hands each up to batch (but never more than their remaining demand or
// the events left). Subscribers whose demand is satisfied drop out of
// later rounds; the process terminates once every available event has
// been handed out.
type Even[S comparable] struct{}

// Assign implements Policy.
func (Even[S]) Assign(demands *demand.Map[S], eventCount int, rng *rand.Rand) (assigned, remaining *demand.Map[S]) {
	assigned = demand.New[S]()
	remaining = demands.Clone()

	if demands.Total() <= eventCount {
		return demands.Clone(), demand.New[S]()
	}

	left := eventCount
	for left > 0 {
		subs := remaining.Subscribers()
		k := len(subs)
		if k == 0 {
			break
		}

		batch := left / k
		if batch < 1 {
			batch = 1
		}

		order := shuffle(subs, rng)
		for _, sub := range order {
			want := remaining.Get(sub)
			amount := min(batch, want, left)
			if amount <= 0 {
				continue
			}
			remaining.Subtract(sub, amount)
			assigned.Add(sub, amount)
			left -= amount
			if left == 0 {
				break
			}
		}
	}

	return assigned, remaining
}

var _ Policy[string] = Even[string]{}
