// Package buffer implements the Buffer (C4) and Monitored Buffer (C6): a
// bounded FIFO of events wired to per-subscriber demand accounting and a
// pluggable fairness policy, plus the liveness wiring that keeps
// subscriber demand and liveness watches in sync. Both types are
// sequential values with no internal synchronization; callers serialize
// access externally (see package dispatch).
package buffer

import (
	"math/rand/v2"

	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/demand"
	"github.com/justapithecus/dispenser/queue"
	"github.com/justapithecus/dispenser/types"
)

// Stats is a point-in-time snapshot of buffer occupancy.
type Stats struct {
	Buffered int
	Demand   int
}

// Buffer composes a bounded FIFO, a demand map, and a fairness policy.
// Either the queue is non-empty with zero demand, or demand is non-empty
// with an empty queue, or both are empty — AssignEvents re-establishes
// this shape on every call, but a caller that never calls it can leave
// the invariant transiently violated, which is allowed.
type Buffer[S comparable] struct {
	policy  assign.Policy[S]
	queue   *queue.FIFO
	demands *demand.Map[S]
	rng     *rand.Rand
}

// New creates a Buffer with the given fairness policy, FIFO capacity, and
// drop strategy. rng supplies the policy's randomness; pass a seeded
// source for reproducible tests, or rand.New(rand.NewPCG(a, b)) seeded
// from a real entropy source in production.
func New[S comparable](policy assign.Policy[S], capacity int, strategy queue.DropStrategy, rng *rand.Rand) (*Buffer[S], error) {
	q, err := queue.New(capacity, strategy)
	if err != nil {
		return nil, err
	}
	return &Buffer[S]{
		policy:  policy,
		queue:   q,
		demands: demand.New[S](),
		rng:     rng,
	}, nil
}

// Append adds events to the queue, applying the configured drop policy on
// overflow, and returns the number dropped.
func (b *Buffer[S]) Append(events []types.Event) int {
	return b.queue.Append(events)
}

// Ask records additional demand for sub. n == 0 is a no-op. Ask never
// triggers delivery by itself — call AssignEvents to compute assignments.
func (b *Buffer[S]) Ask(sub S, n int) {
	b.demands.Add(sub, n)
}

// Delete removes all of sub's demand.
func (b *Buffer[S]) Delete(sub S) {
	b.demands.Delete(sub)
}

// AssignEvents computes and applies one round of assignment: it asks the
// policy how to split the buffered events across current demand, then
// physically removes each subscriber's share from the queue head in FIFO
// order. Demand is updated to whatever the policy left unmet. Assigning
// from an empty queue or with no demand is a no-op that returns nil.
func (b *Buffer[S]) AssignEvents() []types.Assignment[S] {
	if b.queue.Size() == 0 || b.demands.Total() == 0 {
		return nil
	}

	toMeet, remaining := b.policy.Assign(b.demands, b.queue.Size(), b.rng)
	b.demands = remaining

	var out []types.Assignment[S]
	for _, sub := range toMeet.Subscribers() {
		n := toMeet.Get(sub)
		if n == 0 {
			continue
		}
		events := b.queue.Split(n)
		if len(events) == 0 {
			continue
		}
		out = append(out, types.Assignment[S]{Subscriber: sub, Events: events})
	}
	return out
}

// Size returns the number of events currently buffered.
func (b *Buffer[S]) Size() int {
	return b.queue.Size()
}

// Demand returns sub's current outstanding demand.
func (b *Buffer[S]) Demand(sub S) int {
	return b.demands.Get(sub)
}

// Stats returns a snapshot of current occupancy.
func (b *Buffer[S]) Stats() Stats {
	return Stats{Buffered: b.queue.Size(), Demand: b.demands.Total()}
}
