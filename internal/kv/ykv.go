package kv

import (
	"sync"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
)

// Action classifies a semantic key-level change delivered to an Observe
// handler, as distinct from the raw crdt.Action (add/delete) on the
// backing array.
type Action int

const (
	ActionAdd Action = iota
	ActionUpdate
	ActionDelete
)

// Change is one key's semantic mutation within a transaction.
type Change[T any] struct {
	Key           string
	Action        Action
	Value         T
	PreviousValue T
	HasPrevious   bool
}

type entry[T any] struct {
	Key string
	Val T
}

type confirmedEntry[T any] struct {
	id  crdt.EntryID
	val T
}

// YKeyValue is a positional (rightmost-wins) key-value store over a CRDT
// array: O(1) lookup via an in-memory index, with at most one live array
// entry per key maintained by deleting superseded entries inside the same
// transaction as every Set.
type YKeyValue[T any] struct {
	doc *crdt.Document
	arr *crdt.Array[entry[T]]

	mu             sync.Mutex
	confirmed      map[string]confirmedEntry[T]
	pending        map[string]T
	pendingDeletes map[string]struct{}

	observers map[int]func(map[string]Change[T])
	nextObsID int
}

// NewYKeyValue creates a YKeyValue backed by a fresh array on doc.
func NewYKeyValue[T any](doc *crdt.Document) *YKeyValue[T] {
	y := &YKeyValue[T]{
		doc:            doc,
		arr:            crdt.NewArray[entry[T]](doc),
		confirmed:      make(map[string]confirmedEntry[T]),
		pending:        make(map[string]T),
		pendingDeletes: make(map[string]struct{}),
		observers:      make(map[int]func(map[string]Change[T])),
	}
	y.bootstrap()
	y.arr.Observe(y.onArrayChange)
	return y
}

// bootstrap sweeps any pre-existing array entries (e.g. from a persistence
// replay that pushed directly onto the array before this instance existed)
// right-to-left, keeping the rightmost entry per key and deleting the rest
// in one transaction, then seeds the confirmed index from what survives.
func (y *YKeyValue[T]) bootstrap() {
	entries := y.arr.Entries()
	if len(entries) == 0 {
		return
	}

	winner := make(map[string]crdt.EntryID)
	val := make(map[string]T)
	var dupes []crdt.EntryID
	for _, e := range entries {
		if prevID, ok := winner[e.Value.Key]; ok {
			dupes = append(dupes, prevID)
		}
		winner[e.Value.Key] = e.ID
		val[e.Value.Key] = e.Value.Val
	}

	if len(dupes) > 0 {
		y.doc.Transact(func() {
			for _, id := range dupes {
				y.arr.Delete(id)
			}
		})
	}

	for k, id := range winner {
		y.confirmed[k] = confirmedEntry[T]{id: id, val: val[k]}
	}
}

// Set pushes a new entry for k and deletes any prior entry for the same
// key within the same transaction, so the array holds at most one entry
// per key. Read-your-writes is available immediately via the pending map.
func (y *YKeyValue[T]) Set(k string, v T) {
	y.mu.Lock()
	y.pending[k] = v
	delete(y.pendingDeletes, k)
	y.mu.Unlock()

	y.doc.Transact(func() {
		y.arr.Push(entry[T]{Key: k, Val: v})
		y.resolveKeyLocked(k)
	})
}

// resolveKeyLocked keeps only the rightmost (highest EntryID) entry for k,
// deleting the rest. Must run inside a Transact.
func (y *YKeyValue[T]) resolveKeyLocked(k string) {
	var winnerID crdt.EntryID
	have := false
	var ids []crdt.EntryID

	for _, e := range y.arr.Entries() {
		if e.Value.Key != k {
			continue
		}
		ids = append(ids, e.ID)
		winnerID = e.ID // ascending order: last assignment is rightmost
		have = true
	}
	if !have {
		return
	}
	for _, id := range ids {
		if id != winnerID {
			y.arr.Delete(id)
		}
	}
}

// Merge folds another replica's entries in and re-resolves every key they
// touched so only the rightmost (clientID-deterministic) entry survives
// per key, even across a merge. Models two replicas exchanging updates
// after being offline.
func (y *YKeyValue[T]) Merge(other *YKeyValue[T]) {
	y.doc.Transact(func() {
		y.arr.Merge(other.arr)
		touchedKeys := make(map[string]struct{})
		for _, e := range other.arr.Entries() {
			touchedKeys[e.Value.Key] = struct{}{}
		}
		for k := range touchedKeys {
			y.resolveKeyLocked(k)
		}
	})
}

// Delete removes the entry for k, if any. No-op if absent.
func (y *YKeyValue[T]) Delete(k string) {
	y.mu.Lock()
	delete(y.pending, k)
	y.pendingDeletes[k] = struct{}{}
	y.mu.Unlock()

	y.doc.Transact(func() {
		for _, e := range y.arr.Entries() {
			if e.Value.Key == k {
				y.arr.Delete(e.ID)
			}
		}
	})
}

// Get returns the current value for k, consulting pending writes and
// pending deletes before the confirmed index (read-your-writes).
func (y *YKeyValue[T]) Get(k string) (T, bool) {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.getLocked(k)
}

func (y *YKeyValue[T]) getLocked(k string) (T, bool) {
	if v, ok := y.pending[k]; ok {
		return v, true
	}
	if _, ok := y.pendingDeletes[k]; ok {
		var zero T
		return zero, false
	}
	if ce, ok := y.confirmed[k]; ok {
		return ce.val, true
	}
	var zero T
	return zero, false
}

// Has reports whether k currently has a value.
func (y *YKeyValue[T]) Has(k string) bool {
	_, ok := y.Get(k)
	return ok
}

// Entries returns a snapshot of all live key-value pairs, pending overlay
// applied.
func (y *YKeyValue[T]) Entries() map[string]T {
	y.mu.Lock()
	defer y.mu.Unlock()

	out := make(map[string]T, len(y.confirmed))
	for k, ce := range y.confirmed {
		if _, deleted := y.pendingDeletes[k]; deleted {
			continue
		}
		out[k] = ce.val
	}
	for k, v := range y.pending {
		out[k] = v
	}
	return out
}

// Observe registers fn to be called once per transaction with the set of
// keys it touched. Returns a handle for Unobserve.
func (y *YKeyValue[T]) Observe(fn func(map[string]Change[T])) int {
	y.mu.Lock()
	defer y.mu.Unlock()
	id := y.nextObsID
	y.nextObsID++
	y.observers[id] = fn
	return id
}

// Unobserve removes a previously registered observer.
func (y *YKeyValue[T]) Unobserve(handle int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	delete(y.observers, handle)
}

// onArrayChange is the single array observer: it is the sole writer of the
// confirmed map, translating positional add/delete deltas into semantic
// add/update/delete events per key.
func (y *YKeyValue[T]) onArrayChange(changes []crdt.Change[entry[T]]) {
	y.mu.Lock()

	touched := make(map[string]Change[T])
	for _, c := range changes {
		k := c.Value.Key
		prev, hadPrev := y.confirmed[k]

		switch c.Action {
		case crdt.ActionAdd:
			if hadPrev && c.ID.Less(prev.id) {
				// Landed left of the confirmed winner: a loser the same
				// transaction's resolve step already scheduled for deletion.
				// Adopting it here would let the paired delete event below
				// wipe the key while the winner is still live in the array.
				break
			}
			y.confirmed[k] = confirmedEntry[T]{id: c.ID, val: c.Value.Val}
			ch := Change[T]{Key: k, Value: c.Value.Val}
			if hadPrev {
				ch.Action = ActionUpdate
				ch.PreviousValue = prev.val
				ch.HasPrevious = true
			} else {
				ch.Action = ActionAdd
			}
			touched[k] = ch
		case crdt.ActionDelete:
			// Only report a delete if the entry being removed is the one
			// currently confirmed for this key. A delete of a stale
			// duplicate that has already been superseded earlier in this
			// same batch is folded into that add's "update" event.
			if hadPrev && prev.id == c.ID {
				delete(y.confirmed, k)
				touched[k] = Change[T]{
					Key: k, Action: ActionDelete,
					PreviousValue: prev.val, HasPrevious: true,
				}
			}
		}

		delete(y.pending, k)
		delete(y.pendingDeletes, k)
	}

	observers := make([]func(map[string]Change[T]), 0, len(y.observers))
	for _, fn := range y.observers {
		observers = append(observers, fn)
	}
	y.mu.Unlock()

	if len(touched) == 0 {
		return
	}
	for _, fn := range observers {
		fn(touched)
	}
}
