package kv

import (
	"testing"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
)

func clockAt(ts int64) *Clock {
	return newClockWithSource(func() int64 { return ts })
}

func TestYKeyValueLww_SetGet(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	y := NewYKeyValueLww[string](doc, NewClock())

	y.Set("a", "1")
	v, ok := y.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get(a) = (%q, %v), want (1, true)", v, ok)
	}
}

func TestYKeyValueLww_LaterSetWins(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	y := NewYKeyValueLww[string](doc, NewClock())

	y.Set("k", "first")
	y.Set("k", "second")

	v, ok := y.Get("k")
	if !ok || v != "second" {
		t.Fatalf("Get(k) = (%q, %v), want (second, true)", v, ok)
	}
	if y.arr.Len() != 1 {
		t.Fatalf("array length = %d, want 1", y.arr.Len())
	}
}

func TestYKeyValueLww_ClockMonotonic(t *testing.T) {
	c := clockAt(1000)
	first := c.Next()
	second := c.Next()
	if second <= first {
		t.Fatalf("second ts %d <= first ts %d, want strictly greater", second, first)
	}
}

func TestYKeyValueLww_ClockSelfHealsFromObserve(t *testing.T) {
	c := clockAt(1000)
	c.Observe(5000)
	next := c.Next()
	if next <= 5000 {
		t.Fatalf("Next() after Observe(5000) = %d, want > 5000", next)
	}
}

// TestYKeyValueLww_ConvergenceAcrossClockSkew models clock skew:
// replica A's wall clock reads 1000, replica B's reads 5000. B sets x=B
// (ts=5000) and syncs to A; A's monotonic clock raises to 5001 on
// observing ts=5000, so A's own subsequent set of x=A gets ts=5001 and
// wins after merging back.
func TestYKeyValueLww_ConvergenceAcrossClockSkew(t *testing.T) {
	docA := crdt.NewDocument("shared", true, crdt.WithReplicaID(1))
	docB := crdt.NewDocument("shared", true, crdt.WithReplicaID(2))

	clockA := clockAt(1000)
	clockB := clockAt(5000)

	lwwA := NewYKeyValueLww[string](docA, clockA)
	lwwB := NewYKeyValueLww[string](docB, clockB)

	lwwB.Set("x", "B") // ts = 5000

	lwwA.Merge(lwwB) // A observes ts=5000, clock raises past it

	lwwA.Set("x", "A") // ts = 5001, strictly exceeds B's 5000

	lwwB.Merge(lwwA)

	va, okA := lwwA.Get("x")
	vb, okB := lwwB.Get("x")
	if !okA || !okB || va != "A" || vb != "A" {
		t.Fatalf("post-merge values = (%q,%v) (%q,%v), want both (A, true)", va, okA, vb, okB)
	}
	if lwwA.arr.Len() != 1 || lwwB.arr.Len() != 1 {
		t.Fatalf("post-merge array lengths = %d, %d, want 1, 1", lwwA.arr.Len(), lwwB.arr.Len())
	}
}

func TestYKeyValueLww_MergeOlderEntryKeepsNewerWinner(t *testing.T) {
	docA := crdt.NewDocument("shared", true, crdt.WithReplicaID(1))
	docB := crdt.NewDocument("shared", true, crdt.WithReplicaID(2))

	lwwA := NewYKeyValueLww[string](docA, clockAt(10))
	lwwB := NewYKeyValueLww[string](docB, clockAt(20))

	lwwA.Set("x", "old") // ts = 10
	lwwB.Set("x", "new") // ts = 20

	// Merging the older remote entry into the replica that holds the newer
	// one must leave the newer value both in the array and readable.
	lwwB.Merge(lwwA)

	v, ok := lwwB.Get("x")
	if !ok || v != "new" {
		t.Fatalf("post-merge Get(x) on B = (%q, %v), want (new, true)", v, ok)
	}
	if lwwB.arr.Len() != 1 {
		t.Fatalf("post-merge array length = %d, want 1", lwwB.arr.Len())
	}
}

func TestYKeyValueLww_OverwriteReportsUpdate(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	y := NewYKeyValueLww[int](doc, NewClock())

	y.Set("k", 1)

	var changes []Change[int]
	y.Observe(func(c map[string]Change[int]) {
		for _, ch := range c {
			changes = append(changes, ch)
		}
	})

	y.Set("k", 2)

	if len(changes) != 1 {
		t.Fatalf("len(changes) = %d, want 1", len(changes))
	}
	if changes[0].Action != ActionUpdate {
		t.Errorf("action = %v, want ActionUpdate", changes[0].Action)
	}
	if changes[0].PreviousValue != 1 {
		t.Errorf("previous value = %d, want 1", changes[0].PreviousValue)
	}
}

func TestYKeyValueLww_DoubleDeleteNoop(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	y := NewYKeyValueLww[int](doc, NewClock())

	y.Set("k", 1)
	y.Delete("k")
	y.Delete("k")

	if y.Has("k") {
		t.Fatal("Has(k) = true after double delete")
	}
}
