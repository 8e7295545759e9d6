package demand_test

import (
	"testing"

	"github.com/justapithecus/dispenser/demand"
)

func TestAdd_NewSubscriber(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 5)

	if got := m.Get("s1"); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if m.Total() != 5 {
		t.Errorf("expected total 5, got %d", m.Total())
	}
	if m.Size() != 1 {
		t.Errorf("expected size 1, got %d", m.Size())
	}
}

func TestAdd_ExistingSubscriber(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 5)
	m.Add("s1", 3)

	if got := m.Get("s1"); got != 8 {
		t.Errorf("expected 8, got %d", got)
	}
	if m.Total() != 8 {
		t.Errorf("expected total 8, got %d", m.Total())
	}
	if m.Size() != 1 {
		t.Errorf("expected size to stay 1, got %d", m.Size())
	}
}

func TestAdd_ZeroIsNoOp(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 0)

	if m.Size() != 0 {
		t.Errorf("expected size 0, got %d", m.Size())
	}
	if m.Total() != 0 {
		t.Errorf("expected total 0, got %d", m.Total())
	}
}

func TestSubtract_Partial(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 10)
	m.Subtract("s1", 4)

	if got := m.Get("s1"); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
	if m.Total() != 6 {
		t.Errorf("expected total 6, got %d", m.Total())
	}
}

func TestSubtract_ExactlyToZero_RemovesEntry(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 10)
	m.Subtract("s1", 10)

	if got := m.Get("s1"); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if m.Size() != 0 {
		t.Errorf("expected entry removed, size got %d", m.Size())
	}
}

func TestSubtract_MoreThanCurrent_Clamps(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 3)
	m.Subtract("s1", 100)

	if got := m.Get("s1"); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if m.Total() != 0 {
		t.Errorf("expected total 0, got %d", m.Total())
	}
	if m.Size() != 0 {
		t.Errorf("expected size 0, got %d", m.Size())
	}
}

func TestSubtract_AbsentSubscriber_NoOp(t *testing.T) {
	m := demand.New[string]()
	m.Subtract("s1", 5)
	if m.Size() != 0 || m.Total() != 0 {
		t.Errorf("expected no-op on absent subscriber")
	}
}

func TestSubtract_ZeroIsNoOp(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 5)
	m.Subtract("s1", 0)
	if m.Get("s1") != 5 {
		t.Errorf("expected unchanged demand, got %d", m.Get("s1"))
	}
}

func TestDelete(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 7)
	m.Add("s2", 3)
	m.Delete("s1")

	if m.Get("s1") != 0 {
		t.Errorf("expected s1 gone, got %d", m.Get("s1"))
	}
	if m.Total() != 3 {
		t.Errorf("expected total 3, got %d", m.Total())
	}
	if m.Size() != 1 {
		t.Errorf("expected size 1, got %d", m.Size())
	}
}

func TestDelete_AbsentSubscriber_NoOp(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 5)
	m.Delete("s2")
	if m.Total() != 5 || m.Size() != 1 {
		t.Errorf("expected no change deleting absent subscriber")
	}
}

func TestSubscribers_Snapshot(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 1)
	m.Add("s2", 2)

	subs := m.Subscribers()
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(subs))
	}

	// Mutating the snapshot must not affect the map.
	subs[0] = "mutated"
	if m.Size() != 2 {
		t.Errorf("snapshot mutation leaked into map")
	}
}

func TestClone_Independent(t *testing.T) {
	m := demand.New[string]()
	m.Add("s1", 5)

	clone := m.Clone()
	clone.Add("s1", 10)
	clone.Add("s2", 1)

	if m.Get("s1") != 5 {
		t.Errorf("original mutated by clone, got %d", m.Get("s1"))
	}
	if m.Size() != 1 {
		t.Errorf("original size changed, got %d", m.Size())
	}
	if clone.Get("s1") != 15 || clone.Size() != 2 {
		t.Errorf("clone did not apply its own mutations correctly")
	}
}

// invariant: total always equals the sum of all values, size always
// equals the number of keys. Checked across a scripted sequence of
// mutations (property-style, per spec.md's universal invariants).
func TestInvariant_TotalAndSize(t *testing.T) {
	m := demand.New[int]()
	ops := []struct {
		sub  int
		add  int
		sub2 int
	}{
		{1, 5, 0},
		{2, 3, 0},
		{1, 2, 0},
		{3, 10, 0},
		{2, 0, 1},
		{1, 0, 100},
	}

	for _, op := range ops {
		m.Add(op.sub, op.add)
		if op.sub2 != 0 {
			m.Subtract(op.sub, op.sub2)
		}
		checkInvariant(t, m)
	}
}

func checkInvariant[S comparable](t *testing.T, m *demand.Map[S]) {
	t.Helper()
	sum := 0
	for _, s := range m.Subscribers() {
		sum += m.Get(s)
	}
	if sum != m.Total() {
		t.Fatalf("invariant violated: total=%d sum=%d", m.Total(), sum)
	}
	if len(m.Subscribers()) != m.Size() {
		t.Fatalf("invariant violated: size=%d len(subscribers)=%d", m.Size(), len(m.Subscribers()))
	}
}
