package crdt

import "sort"

// EntryID is the total-order key of an entry within an Array: a logical
// position counter, tie-broken by replica. Two entries pushed concurrently
// on different replicas with the same counter sort with the lower replica
// on the left, so all replicas order concurrent pushes identically.
type EntryID struct {
	Counter uint64
	Replica ReplicaID
}

// Less reports whether id sorts strictly before other.
func (id EntryID) Less(other EntryID) bool {
	if id.Counter != other.Counter {
		return id.Counter < other.Counter
	}
	return id.Replica < other.Replica
}

// Action classifies a Change delivered to an Array observer.
type Action int

const (
	ActionAdd Action = iota
	ActionDelete
	ActionUpdate
)

// Change describes one entry add, update or removal, aggregated per
// transaction.
type Change[T any] struct {
	ID     EntryID
	Action Action
	Value  T
}

// IndexedEntry is a snapshot view of one live Array element.
type IndexedEntry[T any] struct {
	ID    EntryID
	Value T
}

type arrayObserver[T any] func([]Change[T])

// Array is an ordered, append-only sequence of entries kept in EntryID
// order. It is the leaf CRDT type that YKeyValue/YKeyValueLww are built on.
type Array[T any] struct {
	doc *Document

	entries []IndexedEntry[T]
	index   map[EntryID]int

	pending []Change[T]

	observers map[int]arrayObserver[T]
	nextObsID int
}

// NewArray creates an empty Array owned by doc.
func NewArray[T any](doc *Document) *Array[T] {
	return &Array[T]{
		doc:       doc,
		index:     make(map[EntryID]int),
		observers: make(map[int]arrayObserver[T]),
	}
}

// Len returns the number of live entries.
func (a *Array[T]) Len() int { return len(a.entries) }

// Entries returns a snapshot of the live entries in order. The returned
// slice is a copy; mutating it does not affect the array.
func (a *Array[T]) Entries() []IndexedEntry[T] {
	out := make([]IndexedEntry[T], len(a.entries))
	copy(out, a.entries)
	return out
}

// Push appends a new entry and returns its id, wrapping the mutation in a
// transaction if the caller isn't already inside one.
func (a *Array[T]) Push(v T) EntryID {
	var id EntryID
	a.doc.Transact(func() {
		id = a.pushLocked(v)
	})
	return id
}

func (a *Array[T]) pushLocked(v T) EntryID {
	id := EntryID{Counter: a.doc.nextCounter(), Replica: a.doc.replica}
	a.insertLocked(id, v)
	a.recordLocked(Change[T]{ID: id, Action: ActionAdd, Value: v})
	return id
}

func (a *Array[T]) insertLocked(id EntryID, v T) {
	pos := sort.Search(len(a.entries), func(i int) bool {
		return !a.entries[i].ID.Less(id)
	})
	a.entries = append(a.entries, IndexedEntry[T]{})
	copy(a.entries[pos+1:], a.entries[pos:])
	a.entries[pos] = IndexedEntry[T]{ID: id, Value: v}
	a.reindexFrom(pos)
}

func (a *Array[T]) reindexFrom(pos int) {
	for i := pos; i < len(a.entries); i++ {
		a.index[a.entries[i].ID] = i
	}
}

// Delete removes the entry with id, if present. No-op if absent.
func (a *Array[T]) Delete(id EntryID) bool {
	var removed bool
	a.doc.Transact(func() {
		removed = a.deleteLocked(id)
	})
	return removed
}

func (a *Array[T]) deleteLocked(id EntryID) bool {
	pos, ok := a.index[id]
	if !ok {
		return false
	}
	v := a.entries[pos].Value
	a.entries = append(a.entries[:pos], a.entries[pos+1:]...)
	delete(a.index, id)
	a.reindexFrom(pos)
	a.recordLocked(Change[T]{ID: id, Action: ActionDelete, Value: v})
	return true
}

// UpdateAt replaces the value of the live entry identified by id in place,
// keeping its position and identity (no new EntryID, no delete/push pair).
// Used by content documents for same-mode edits that must preserve a
// version entry's identity across mutations. Returns false if id is not
// currently live.
func (a *Array[T]) UpdateAt(id EntryID, v T) bool {
	var updated bool
	a.doc.Transact(func() {
		pos, ok := a.index[id]
		if !ok {
			return
		}
		a.entries[pos].Value = v
		a.recordLocked(Change[T]{ID: id, Action: ActionUpdate, Value: v})
		updated = true
	})
	return updated
}

func (a *Array[T]) recordLocked(c Change[T]) {
	a.pending = append(a.pending, c)
	a.doc.markDirty(a)
}

// flush delivers the transaction's aggregated changes to observers and
// clears the pending buffer. Called by Document at the end of the
// outermost Transact.
func (a *Array[T]) flush() {
	if len(a.pending) == 0 {
		return
	}
	changes := a.pending
	a.pending = nil
	for _, obs := range a.observers {
		obs(changes)
	}
}

// Observe registers fn to be called once per outermost transaction that
// mutates this array, with the aggregated change set. Returns a handle for
// Unobserve.
func (a *Array[T]) Observe(fn func([]Change[T])) int {
	id := a.nextObsID
	a.nextObsID++
	a.observers[id] = fn
	return id
}

// Unobserve removes a previously registered observer.
func (a *Array[T]) Unobserve(handle int) {
	delete(a.observers, handle)
}

// ApplyInsert inserts an entry that originated on another replica, keeping
// its foreign EntryID so both replicas order it identically. No-op (false)
// if the id is already live. The document's counter is raised past the
// foreign counter so subsequent local pushes still sort rightmost.
func (a *Array[T]) ApplyInsert(id EntryID, v T) bool {
	var inserted bool
	a.doc.Transact(func() {
		if _, ok := a.index[id]; ok {
			return
		}
		a.doc.RaiseCounter(id.Counter)
		a.insertLocked(id, v)
		a.recordLocked(Change[T]{ID: id, Action: ActionAdd, Value: v})
		inserted = true
	})
	return inserted
}

// Merge folds entries present in other but not in a into a, preserving
// EntryID total order. Entries present in a but absent from other are kept;
// Merge never removes anything. Used to simulate two replicas exchanging
// updates after being offline.
func (a *Array[T]) Merge(other *Array[T]) {
	a.doc.Transact(func() {
		for _, e := range other.entries {
			if _, ok := a.index[e.ID]; !ok {
				a.insertLocked(e.ID, e.Value)
				a.recordLocked(Change[T]{ID: e.ID, Action: ActionAdd, Value: e.Value})
			}
		}
	})
}
