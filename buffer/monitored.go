package buffer

import (
	"math/rand/v2"

	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/liveness"
	"github.com/justapithecus/dispenser/queue"
	"github.com/justapithecus/dispenser/types"
)

// MonitoredBuffer composes a Buffer with a liveness Tracker, keeping
// demand and liveness watches in sync: for every handle with positive
// demand there is a liveness entry, and removing from one removes from
// the other. Ask additionally registers a liveness watch (idempotent);
// the watch is kept even if demand later drops to zero — liveness
// tracking is deliberately decoupled from demand presence (spec.md §9).
type MonitoredBuffer[S comparable] struct {
	buffer  *Buffer[S]
	tracker *liveness.Tracker[S]
}

// NewMonitored creates a MonitoredBuffer.
func NewMonitored[S comparable](policy assign.Policy[S], capacity int, strategy queue.DropStrategy, rng *rand.Rand, watcher liveness.Watcher[S]) (*MonitoredBuffer[S], error) {
	buf, err := New(policy, capacity, strategy, rng)
	if err != nil {
		return nil, err
	}
	return &MonitoredBuffer[S]{
		buffer:  buf,
		tracker: liveness.New(watcher),
	}, nil
}

// Append forwards to the underlying Buffer.
func (m *MonitoredBuffer[S]) Append(events []types.Event) int {
	return m.buffer.Append(events)
}

// Ask records demand and ensures sub is watched.
func (m *MonitoredBuffer[S]) Ask(sub S, n int) {
	m.buffer.Ask(sub, n)
	m.tracker.Watch(sub)
}

// Delete unwatches sub and removes its demand. Returns
// liveness.ErrNotSubscribed if sub was never watched.
func (m *MonitoredBuffer[S]) Delete(sub S) error {
	if err := m.tracker.Unwatch(sub); err != nil {
		return err
	}
	m.buffer.Delete(sub)
	return nil
}

// OnDown processes a disappearance notification. On a matching token it
// removes sub's demand in addition to its liveness entry; on
// liveness.ErrWrongToken or liveness.ErrNotSubscribed, demand is left
// untouched and the error is propagated.
func (m *MonitoredBuffer[S]) OnDown(sub S, token liveness.Token) error {
	if err := m.tracker.OnDown(sub, token); err != nil {
		return err
	}
	m.buffer.Delete(sub)
	return nil
}

// AssignEvents forwards to the underlying Buffer.
func (m *MonitoredBuffer[S]) AssignEvents() []types.Assignment[S] {
	return m.buffer.AssignEvents()
}

// Size returns the number of buffered events.
func (m *MonitoredBuffer[S]) Size() int {
	return m.buffer.Size()
}

// Subscribed returns the number of currently-watched subscribers
// (independent of whether they currently have demand).
func (m *MonitoredBuffer[S]) Subscribed() int {
	return m.tracker.Size()
}

// Stats returns occupancy and demand statistics from the underlying
// Buffer.
func (m *MonitoredBuffer[S]) Stats() Stats {
	return m.buffer.Stats()
}
