package buffer_test

import (
	"errors"
	"testing"

	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/buffer"
	"github.com/justapithecus/dispenser/liveness"
	"github.com/justapithecus/dispenser/queue"
)

// TestMonitoredBuffer_S6 reproduces spec.md scenario S6: three subscribers
// ask (3, 7, 13); demand=23, subscribed=3. Killing subscriber 2 drops
// demand to 16, subscribed to 2, and removes its slot entirely.
func TestMonitoredBuffer_S6(t *testing.T) {
	var downToken liveness.Token
	var downSub string
	w := liveness.NewManualWatcher[string](func(sub string, token liveness.Token) {
		downSub, downToken = sub, token
	})

	mb, err := buffer.NewMonitored[string](assign.Even[string]{}, 100, queue.DropOldest, newRNG(1), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mb.Ask("s1", 3)
	mb.Ask("s2", 7)
	mb.Ask("s3", 13)

	stats := mb.Stats()
	if stats.Demand != 23 {
		t.Fatalf("expected demand 23, got %d", stats.Demand)
	}
	if mb.Subscribed() != 3 {
		t.Fatalf("expected subscribed 3, got %d", mb.Subscribed())
	}

	w.Down("s2")
	if downSub != "s2" {
		t.Fatalf("expected down notification for s2, got %s", downSub)
	}

	if err := mb.OnDown(downSub, downToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats = mb.Stats()
	if stats.Demand != 16 {
		t.Fatalf("expected demand 16 after kill, got %d", stats.Demand)
	}
	if mb.Subscribed() != 2 {
		t.Fatalf("expected subscribed 2 after kill, got %d", mb.Subscribed())
	}
}

func TestMonitoredBuffer_OnDown_WrongToken_PropagatesAndKeepsDemand(t *testing.T) {
	w := liveness.NewManualWatcher[string](nil)
	mb, _ := buffer.NewMonitored[string](assign.Even[string]{}, 100, queue.DropOldest, newRNG(1), w)
	mb.Ask("s1", 5)

	err := mb.OnDown("s1", liveness.Token("stale"))
	if !errors.Is(err, liveness.ErrWrongToken) {
		t.Fatalf("expected ErrWrongToken, got %v", err)
	}
	if mb.Stats().Demand != 5 {
		t.Fatalf("expected demand untouched, got %d", mb.Stats().Demand)
	}
}

func TestMonitoredBuffer_Delete_NotSubscribed(t *testing.T) {
	w := liveness.NewManualWatcher[string](nil)
	mb, _ := buffer.NewMonitored[string](assign.Even[string]{}, 100, queue.DropOldest, newRNG(1), w)

	if err := mb.Delete("ghost"); !errors.Is(err, liveness.ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}

// TestMonitoredBuffer_Ask_ReregistersAfterDemandDrainedToZero exercises
// the open-question decision in spec.md §9: a subscriber driven to zero
// demand stays watched, and a later Ask re-establishes demand without
// needing to re-subscribe liveness.
func TestMonitoredBuffer_Ask_ReregistersAfterDemandDrainedToZero(t *testing.T) {
	w := liveness.NewManualWatcher[string](nil)
	mb, _ := buffer.NewMonitored[string](assign.Greedy[string]{}, 100, queue.DropOldest, newRNG(1), w)

	mb.Ask("s1", 2)
	mb.Append([]any{"a", "b"})
	mb.AssignEvents() // demand drained to 0, but s1 stays watched

	if mb.Subscribed() != 1 {
		t.Fatalf("expected s1 to remain watched after demand reached 0, got %d", mb.Subscribed())
	}

	mb.Ask("s1", 5)
	if mb.Stats().Demand != 5 {
		t.Fatalf("expected demand re-registered to 5, got %d", mb.Stats().Demand)
	}
	if mb.Subscribed() != 1 {
		t.Fatalf("expected subscribed count unchanged at 1, got %d", mb.Subscribed())
	}
}
