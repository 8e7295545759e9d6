package dispatch_test

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/dispatch"
	"github.com/justapithecus/dispenser/liveness"
	"github.com/justapithecus/dispenser/queue"
	"github.com/justapithecus/dispenser/types"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^1))
}

// collector is a thread-safe sink recording every delivery; the actor
// calls the hook from its own goroutine, so tests read it only after
// synchronizing through Stats (which round-trips the actor's mailbox).
type collector[S comparable] struct {
	mu   sync.Mutex
	got  map[S][]types.Event
	hits int
}

func newCollector[S comparable]() *collector[S] {
	return &collector[S]{got: make(map[S][]types.Event)}
}

func (c *collector[S]) deliver(sub S, events []types.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got[sub] = append(c.got[sub], events...)
	c.hits++
}

func (c *collector[S]) snapshot(sub S) []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Event, len(c.got[sub]))
	copy(out, c.got[sub])
	return out
}

func manualWatcherFactory[S comparable]() (func(onDown func(S, liveness.Token)) liveness.Watcher[S], func() *liveness.ManualWatcher[S]) {
	var w *liveness.ManualWatcher[S]
	factory := func(onDown func(S, liveness.Token)) liveness.Watcher[S] {
		w = liveness.NewManualWatcher[S](onDown)
		return w
	}
	return factory, func() *liveness.ManualWatcher[S] { return w }
}

func ints(n, from int) []types.Event {
	out := make([]types.Event, n)
	for i := range n {
		out[i] = from + i
	}
	return out
}

// TestImmediate_AskThenAppend_DeliversSynchronouslyWithReply checks law
// 12's consequence for the simple case: a single subscriber whose demand
// is fully satisfiable sees buffered drop to 0 immediately after append.
func TestImmediate_AskThenAppend_DeliversSynchronouslyWithReply(t *testing.T) {
	col := newCollector[string]()
	factory, _ := manualWatcherFactory[string]()

	d, err := dispatch.NewImmediate(dispatch.Config[string]{
		Capacity:     10,
		DropStrategy: queue.DropOldest,
		Policy:       assign.Greedy[string]{},
		Rand:         newRNG(1),
		NewWatcher:   factory,
		Deliver:      col.deliver,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Shutdown()

	d.Ask("s1", 5)
	dropped := d.Append(ints(5, 0))
	if dropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", dropped)
	}

	stats := d.Stats()
	if stats.Buffered != 0 {
		t.Fatalf("expected buffered 0 after immediate delivery, got %d", stats.Buffered)
	}
	if stats.Demand != 0 {
		t.Fatalf("expected demand 0, got %d", stats.Demand)
	}

	got := col.snapshot("s1")
	if len(got) != 5 {
		t.Fatalf("expected 5 delivered events, got %d", len(got))
	}
}

// TestImmediate_Invariant_DemandZeroOrBufferedZero checks law 12 across a
// sequence of commands with partial demand.
func TestImmediate_Invariant_DemandZeroOrBufferedZero(t *testing.T) {
	col := newCollector[string]()
	factory, _ := manualWatcherFactory[string]()

	d, err := dispatch.NewImmediate(dispatch.Config[string]{
		Capacity:     100,
		DropStrategy: queue.DropOldest,
		Policy:       assign.Even[string]{},
		Rand:         newRNG(3),
		NewWatcher:   factory,
		Deliver:      col.deliver,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Shutdown()

	d.Ask("s1", 3)
	d.Append(ints(10, 0))
	d.Ask("s2", 2)
	d.Append(ints(1, 100))

	stats := d.Stats()
	if stats.Demand != 0 && stats.Buffered != 0 {
		t.Fatalf("law 12 violated: demand=%d buffered=%d", stats.Demand, stats.Buffered)
	}
}

// TestImmediate_Liveness_OnDownRemovesSubscriber checks law 14: after a
// matching disappearance notification, demand is zeroed and a later ask
// re-registers cleanly.
func TestImmediate_Liveness_OnDownRemovesSubscriber(t *testing.T) {
	col := newCollector[string]()
	factory, getWatcher := manualWatcherFactory[string]()

	d, err := dispatch.NewImmediate(dispatch.Config[string]{
		Capacity:     100,
		DropStrategy: queue.DropOldest,
		Policy:       assign.Even[string]{},
		Rand:         newRNG(4),
		NewWatcher:   factory,
		Deliver:      col.deliver,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Shutdown()

	d.Ask("s1", 10)
	if got := d.Stats().Demand; got != 10 {
		t.Fatalf("expected demand 10, got %d", got)
	}

	getWatcher().Down("s1")

	// OnDown is delivered asynchronously through the actor's own
	// mailbox; Stats round-trips the same mailbox so it observes the
	// down notification's effects once it returns.
	var demand int
	for range 100 {
		demand = d.Stats().Demand
		if demand == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if demand != 0 {
		t.Fatalf("expected demand 0 after on_down, got %d", demand)
	}

	d.Ask("s1", 5)
	if got := d.Stats().Demand; got != 5 {
		t.Fatalf("expected demand re-registered to 5, got %d", got)
	}
}

func TestImmediate_Unsubscribe_NotSubscribed(t *testing.T) {
	col := newCollector[string]()
	factory, _ := manualWatcherFactory[string]()

	d, err := dispatch.NewImmediate(dispatch.Config[string]{
		Capacity:     10,
		DropStrategy: queue.DropOldest,
		Policy:       assign.Even[string]{},
		Rand:         newRNG(1),
		NewWatcher:   factory,
		Deliver:      col.deliver,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Shutdown()

	if err := d.Unsubscribe("ghost"); err == nil {
		t.Fatal("expected error for unsubscribed handle")
	}
}
