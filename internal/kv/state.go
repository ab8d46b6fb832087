package kv

import (
	"encoding/json"
	"fmt"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
)

// StateEntry is one key's durable/wire representation: the JSON-encoded
// value, the LWW timestamp, and the originating EntryID so two replicas
// applying the same state agree on positional tie-breaks.
type StateEntry struct {
	Key     string          `json:"key"`
	Val     json.RawMessage `json:"val"`
	Ts      int64           `json:"ts"`
	Counter uint64          `json:"ctr"`
	Replica uint64          `json:"rep"`
}

// Tombstone records that a key was deleted at a given timestamp. A remote
// entry for the key with ts at or below the tombstone's is dead on arrival.
type Tombstone struct {
	Key string `json:"key"`
	Ts  int64  `json:"ts"`
}

// State is a store's full encodable state: live entries plus delete
// tombstones, the unit both the sync extension ships between peers and the
// persistence extension snapshots to disk.
type State struct {
	Entries    []StateEntry `json:"entries"`
	Tombstones []Tombstone  `json:"tombstones,omitempty"`
}

// RawOp classifies a RawChange.
type RawOp uint8

const (
	RawSet RawOp = iota
	RawDelete
)

// RawChange is the untyped form of a semantic key change, carrying the
// JSON-encoded value and timestamps a write-ahead log needs. Delivered to
// ObserveRaw handlers alongside the typed Observe stream.
type RawChange struct {
	Op    RawOp
	Entry StateEntry
}

// State returns the store's current encodable state. Values are marshaled
// with encoding/json; a value that cannot marshal fails the whole call.
func (y *YKeyValueLww[T]) State() (State, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	st := State{Entries: make([]StateEntry, 0, len(y.confirmed))}
	for k, ce := range y.confirmed {
		raw, err := json.Marshal(ce.val)
		if err != nil {
			return State{}, fmt.Errorf("kv: encode state for key %q: %w", k, err)
		}
		st.Entries = append(st.Entries, StateEntry{
			Key: k, Val: raw, Ts: ce.ts,
			Counter: ce.id.Counter, Replica: uint64(ce.id.Replica),
		})
	}
	for k, ts := range y.tombstones {
		st.Tombstones = append(st.Tombstones, Tombstone{Key: k, Ts: ts})
	}
	return st, nil
}

// ApplyState merges a remote replica's (or a restored snapshot's) state
// into the store in one transaction: tombstones first, then entries, each
// key re-resolved so the max-ts (rightmost on tie) winner survives. Entries
// that lose to a local entry or tombstone are skipped without churn.
func (y *YKeyValueLww[T]) ApplyState(st State) error {
	var firstErr error
	y.doc.Transact(func() {
		for _, t := range st.Tombstones {
			y.applyTombstoneLocked(t)
		}
		for _, e := range st.Entries {
			if err := y.applyEntryLocked(e); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func (y *YKeyValueLww[T]) applyTombstoneLocked(t Tombstone) {
	y.mu.Lock()
	if t.Ts <= y.tombstones[t.Key] {
		y.mu.Unlock()
		return
	}
	y.tombstones[t.Key] = t.Ts
	ce, ok := y.confirmed[t.Key]
	y.mu.Unlock()

	if ok && ce.ts <= t.Ts {
		for _, e := range y.arr.Entries() {
			if e.Value.Key == t.Key && e.Value.Ts <= t.Ts {
				y.arr.Delete(e.ID)
			}
		}
	}
}

func (y *YKeyValueLww[T]) applyEntryLocked(se StateEntry) error {
	var v T
	if err := json.Unmarshal(se.Val, &v); err != nil {
		return fmt.Errorf("kv: decode state for key %q: %w", se.Key, err)
	}
	id := crdt.EntryID{Counter: se.Counter, Replica: crdt.ReplicaID(se.Replica)}

	y.mu.Lock()
	if ts, dead := y.tombstones[se.Key]; dead && se.Ts <= ts {
		y.mu.Unlock()
		return nil
	}
	if ce, ok := y.confirmed[se.Key]; ok {
		// Loses outright, or ties positionally-left of the local winner:
		// skip the insert instead of inserting and deleting again.
		if se.Ts < ce.ts || (se.Ts == ce.ts && !ce.id.Less(id)) {
			y.mu.Unlock()
			return nil
		}
	}
	y.mu.Unlock()

	if y.arr.ApplyInsert(id, lwwEntry[T]{Key: se.Key, Val: v, Ts: se.Ts}) {
		y.resolveKeyLocked(se.Key)
	}
	return nil
}

// ObserveRaw registers fn to receive the untyped form of every semantic
// change, once per transaction. The persistence extension's WAL tail hangs
// off this stream.
func (y *YKeyValueLww[T]) ObserveRaw(fn func([]RawChange)) int {
	y.mu.Lock()
	defer y.mu.Unlock()
	id := y.nextObsID
	y.nextObsID++
	y.rawObservers[id] = fn
	return id
}

// UnobserveRaw removes a previously registered raw observer.
func (y *YKeyValueLww[T]) UnobserveRaw(handle int) {
	y.mu.Lock()
	defer y.mu.Unlock()
	delete(y.rawObservers, handle)
}
