package crdt

import "testing"

func TestArray_PushOrder(t *testing.T) {
	doc := NewDocument("d1", true)
	a := NewArray[string](doc)

	a.Push("a")
	a.Push("b")
	a.Push("c")

	got := a.Entries()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.Value != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.Value, want[i])
		}
	}
}

func TestArray_DeleteRemovesSingleEntry(t *testing.T) {
	doc := NewDocument("d1", true)
	a := NewArray[int](doc)

	id1 := a.Push(1)
	a.Push(2)

	if !a.Delete(id1) {
		t.Fatal("Delete(id1) = false, want true")
	}
	if a.Delete(id1) {
		t.Fatal("double delete = true, want false (no-op)")
	}
	if a.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", a.Len())
	}
}

func TestArray_ObserveFiresOncePerTransaction(t *testing.T) {
	doc := NewDocument("d1", true)
	a := NewArray[string](doc)

	var fireCount int
	var lastChanges []Change[string]
	a.Observe(func(changes []Change[string]) {
		fireCount++
		lastChanges = changes
	})

	doc.Transact(func() {
		a.Push("x")
		a.Push("y")
	})

	if fireCount != 1 {
		t.Fatalf("fireCount = %d, want 1", fireCount)
	}
	if len(lastChanges) != 2 {
		t.Fatalf("len(lastChanges) = %d, want 2", len(lastChanges))
	}
}

func TestArray_NestedTransactAbsorbed(t *testing.T) {
	doc := NewDocument("d1", true)
	a := NewArray[int](doc)

	var fireCount int
	a.Observe(func(changes []Change[int]) { fireCount++ })

	doc.Transact(func() {
		a.Push(1)
		doc.Transact(func() {
			a.Push(2)
		})
		a.Push(3)
	})

	if fireCount != 1 {
		t.Fatalf("fireCount = %d, want 1 (nested transact must not flush separately)", fireCount)
	}
	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}
}

// TestArray_PositionalConvergence models two offline replicas:
// offline, each push a concurrent entry for the same logical key at the
// same counter value; after merging, the higher replica id sorts rightmost.
func TestArray_PositionalConvergence(t *testing.T) {
	docA := NewDocument("shared", true, WithReplicaID(5))
	docB := NewDocument("shared", true, WithReplicaID(12))

	arrA := NewArray[string](docA)
	arrB := NewArray[string](docB)

	arrA.Push("A")
	arrB.Push("B")

	arrA.Merge(arrB)
	arrB.Merge(arrA)

	entriesA := arrA.Entries()
	entriesB := arrB.Entries()

	if len(entriesA) != 2 || len(entriesB) != 2 {
		t.Fatalf("post-merge lengths = %d, %d, want 2, 2", len(entriesA), len(entriesB))
	}
	if entriesA[len(entriesA)-1].Value != "B" {
		t.Errorf("replica A rightmost = %q, want %q (higher replica id)", entriesA[len(entriesA)-1].Value, "B")
	}
	if entriesB[len(entriesB)-1].Value != "B" {
		t.Errorf("replica B rightmost = %q, want %q (higher replica id)", entriesB[len(entriesB)-1].Value, "B")
	}
}

func TestArray_UnobserveStopsDelivery(t *testing.T) {
	doc := NewDocument("d1", true)
	a := NewArray[int](doc)

	var fireCount int
	handle := a.Observe(func(changes []Change[int]) { fireCount++ })
	a.Unobserve(handle)

	a.Push(1)

	if fireCount != 0 {
		t.Fatalf("fireCount = %d, want 0 after Unobserve", fireCount)
	}
}
