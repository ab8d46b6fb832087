package kv

import (
	"encoding/json"
	"sync"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
)

type lwwEntry[T any] struct {
	Key string
	Val T
	Ts  int64
}

type confirmedLww[T any] struct {
	id  crdt.EntryID
	val T
	ts  int64
}

// YKeyValueLww is the timestamped variant of YKeyValue: each entry carries
// a monotonic logical clock value, and conflicts are resolved by strictly
// higher ts, falling back to rightmost array position on a tie. It is the
// foundation every table/KV in the layers above is built on.
type YKeyValueLww[T any] struct {
	doc   *crdt.Document
	arr   *crdt.Array[lwwEntry[T]]
	clock *Clock

	mu             sync.Mutex
	confirmed      map[string]confirmedLww[T]
	pending        map[string]T
	pendingDeletes map[string]struct{}
	// tombstones remembers the timestamp each key was deleted at, so a
	// remote entry older than the deletion stays dead when state merges.
	tombstones map[string]int64

	observers    map[int]func(map[string]Change[T])
	rawObservers map[int]func([]RawChange)
	nextObsID    int
}

// NewYKeyValueLww creates a YKeyValueLww backed by a fresh array on doc. A
// nil clock creates a wall-clock-backed Clock.
func NewYKeyValueLww[T any](doc *crdt.Document, clock *Clock) *YKeyValueLww[T] {
	if clock == nil {
		clock = NewClock()
	}
	y := &YKeyValueLww[T]{
		doc:            doc,
		arr:            crdt.NewArray[lwwEntry[T]](doc),
		clock:          clock,
		confirmed:      make(map[string]confirmedLww[T]),
		pending:        make(map[string]T),
		pendingDeletes: make(map[string]struct{}),
		tombstones:     make(map[string]int64),
		observers:      make(map[int]func(map[string]Change[T])),
		rawObservers:   make(map[int]func([]RawChange)),
	}
	y.bootstrap()
	y.arr.Observe(y.onArrayChange)
	return y
}

// bootstrap resolves any pre-existing entries to one winner per key (max
// ts, rightmost on tie), deletes the losers in one transaction, seeds the
// confirmed index, and raises the clock past the highest ts observed.
func (y *YKeyValueLww[T]) bootstrap() {
	entries := y.arr.Entries()
	if len(entries) == 0 {
		return
	}

	type cand struct {
		id  crdt.EntryID
		val T
		ts  int64
	}
	winner := make(map[string]cand)
	var dupes []crdt.EntryID
	var maxTs int64

	for _, e := range entries {
		if e.Value.Ts > maxTs {
			maxTs = e.Value.Ts
		}
		cur, ok := winner[e.Value.Key]
		if !ok || e.Value.Ts >= cur.ts {
			if ok {
				dupes = append(dupes, cur.id)
			}
			winner[e.Value.Key] = cand{id: e.ID, val: e.Value.Val, ts: e.Value.Ts}
		} else {
			dupes = append(dupes, e.ID)
		}
	}

	if len(dupes) > 0 {
		y.doc.Transact(func() {
			for _, id := range dupes {
				y.arr.Delete(id)
			}
		})
	}

	for k, c := range winner {
		y.confirmed[k] = confirmedLww[T]{id: c.id, val: c.val, ts: c.ts}
	}
	y.clock.Observe(maxTs)
}

// Set assigns a fresh monotonic ts and pushes a new entry, then resolves
// ties among all entries sharing k so only the winner survives.
func (y *YKeyValueLww[T]) Set(k string, v T) {
	ts := y.clock.Next()

	y.mu.Lock()
	y.pending[k] = v
	delete(y.pendingDeletes, k)
	y.mu.Unlock()

	y.doc.Transact(func() {
		y.arr.Push(lwwEntry[T]{Key: k, Val: v, Ts: ts})
		y.resolveKeyLocked(k)
	})
}

// Delete removes every entry for k. No-op if absent. The deletion is
// remembered as a tombstone at a fresh clock tick, so state merges cannot
// resurrect the entries it removed.
func (y *YKeyValueLww[T]) Delete(k string) {
	ts := y.clock.Next()

	y.mu.Lock()
	delete(y.pending, k)
	y.pendingDeletes[k] = struct{}{}
	y.tombstones[k] = ts
	y.mu.Unlock()

	y.doc.Transact(func() {
		for _, e := range y.arr.Entries() {
			if e.Value.Key == k {
				y.arr.Delete(e.ID)
			}
		}
	})
}

// resolveKeyLocked keeps only the max-ts (rightmost on tie) entry for k,
// deleting the rest. Must run inside a Transact.
func (y *YKeyValueLww[T]) resolveKeyLocked(k string) {
	var winnerID crdt.EntryID
	var winnerTs int64
	have := false
	var ids []crdt.EntryID

	for _, e := range y.arr.Entries() {
		if e.Value.Key != k {
			continue
		}
		ids = append(ids, e.ID)
		if !have || e.Value.Ts >= winnerTs {
			winnerID = e.ID
			winnerTs = e.Value.Ts
			have = true
		}
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

// Get returns the current value for k (read-your-writes).
func (y *YKeyValueLww[T]) Get(k string) (T, bool) {
	y.mu.Lock()
	defer y.mu.Unlock()

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
func (y *YKeyValueLww[T]) Has(k string) bool {
	_, ok := y.Get(k)
	return ok
}

// Entries returns a snapshot of all live key-value pairs.
func (y *YKeyValueLww[T]) Entries() map[string]T {
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
// keys it touched.
func (y *YKeyValueLww[T]) Observe(fn func(map[string]Change[T])) int {
	y.mu.Lock()
	defer y.mu.Unlock()
	id := y.nextObsID
	y.nextObsID++
	y.observers[id] = fn
	return id
}

// Unobserve removes a previously registered observer.
func (y *YKeyValueLww[T]) Unobserve(handle int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	delete(y.observers, handle)
}

// Merge folds another replica's entries in and re-resolves every key they
// touched, so the rightmost-on-tie max-ts entry wins across the union.
// Models two replicas exchanging updates after being offline.
func (y *YKeyValueLww[T]) Merge(other *YKeyValueLww[T]) {
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

func (y *YKeyValueLww[T]) onArrayChange(changes []crdt.Change[lwwEntry[T]]) {
	y.mu.Lock()

	touched := make(map[string]Change[T])
	for _, c := range changes {
		k := c.Value.Key
		prev, hadPrev := y.confirmed[k]

		switch c.Action {
		case crdt.ActionAdd:
			y.clock.Observe(c.Value.Ts)
			if ts, ok := y.tombstones[k]; ok && c.Value.Ts > ts {
				delete(y.tombstones, k)
			}
			if hadPrev && (c.Value.Ts < prev.ts ||
				(c.Value.Ts == prev.ts && c.ID.Less(prev.id))) {
				// Loses to the confirmed winner: the same transaction's
				// resolve step already scheduled this entry for deletion.
				// Adopting it here would let the paired delete event below
				// wipe the key while the winner is still live in the array.
				break
			}
			y.confirmed[k] = confirmedLww[T]{id: c.ID, val: c.Value.Val, ts: c.Value.Ts}
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

	var raw []RawChange
	if len(y.rawObservers) > 0 {
		raw = y.rawChangesLocked(touched)
	}

	observers := make([]func(map[string]Change[T]), 0, len(y.observers))
	for _, fn := range y.observers {
		observers = append(observers, fn)
	}
	rawObservers := make([]func([]RawChange), 0, len(y.rawObservers))
	for _, fn := range y.rawObservers {
		rawObservers = append(rawObservers, fn)
	}
	y.mu.Unlock()

	if len(touched) == 0 {
		return
	}
	for _, fn := range observers {
		fn(touched)
	}
	if len(raw) > 0 {
		for _, fn := range rawObservers {
			fn(raw)
		}
	}
}

// rawChangesLocked translates a settled semantic change set into its
// untyped WAL-ready form. Values that fail to marshal are dropped from the
// raw stream rather than failing the observer dispatch.
func (y *YKeyValueLww[T]) rawChangesLocked(touched map[string]Change[T]) []RawChange {
	out := make([]RawChange, 0, len(touched))
	for k, ch := range touched {
		if ch.Action == ActionDelete {
			ts := y.tombstones[k]
			out = append(out, RawChange{Op: RawDelete, Entry: StateEntry{Key: k, Ts: ts}})
			continue
		}
		ce, ok := y.confirmed[k]
		if !ok {
			continue
		}
		val, err := json.Marshal(ce.val)
		if err != nil {
			continue
		}
		out = append(out, RawChange{Op: RawSet, Entry: StateEntry{
			Key: k, Val: val, Ts: ce.ts,
			Counter: ce.id.Counter, Replica: uint64(ce.id.Replica),
		}})
	}
	return out
}
