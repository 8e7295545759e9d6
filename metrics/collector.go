// Package metrics provides per-dispatcher metrics collection.
//
// The Collector accumulates counters for a single dispatcher instance. It
// is a leaf package with no internal dependencies, mirroring the
// teacher's per-run collector but scoped to dispatcher lifetime instead
// of run lifetime.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of a dispatcher's counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	Appended  int64
	Delivered int64
	Dropped   int64

	// FlushByTrigger counts completed flushes keyed by why they fired
	// ("append", "ask", "size", "timer").
	FlushByTrigger map[string]int64

	Dispatcher string
	Kind       string
}

// Collector accumulates metrics for one dispatcher instance.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe,
// so a dispatcher built without metrics can call them unconditionally.
type Collector struct {
	mu sync.Mutex

	appended  int64
	delivered int64
	dropped   int64

	flushByTrigger map[string]int64

	dispatcher string
	kind       string
}

// NewCollector creates a Collector labeled with the owning dispatcher's
// name and kind ("immediate" or "batching").
func NewCollector(dispatcher, kind string) *Collector {
	return &Collector{
		flushByTrigger: make(map[string]int64),
		dispatcher:     dispatcher,
		kind:           kind,
	}
}

// IncAppended records n events admitted by Append (before drops).
func (c *Collector) IncAppended(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.appended += int64(n)
	c.mu.Unlock()
}

// IncDelivered records n events handed to the delivery hook.
func (c *Collector) IncDelivered(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.delivered += int64(n)
	c.mu.Unlock()
}

// IncDropped records n events discarded on overflow.
func (c *Collector) IncDropped(n int) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	c.dropped += int64(n)
	c.mu.Unlock()
}

// IncFlush records one completed flush attributed to trigger.
func (c *Collector) IncFlush(trigger string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flushByTrigger[trigger]++
	c.mu.Unlock()
}

// Snapshot returns an immutable view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byTrigger := make(map[string]int64, len(c.flushByTrigger))
	for k, v := range c.flushByTrigger {
		byTrigger[k] = v
	}

	return Snapshot{
		Appended:       c.appended,
		Delivered:      c.delivered,
		Dropped:        c.dropped,
		FlushByTrigger: byTrigger,
		Dispatcher:     c.dispatcher,
		Kind:           c.kind,
	}
}
