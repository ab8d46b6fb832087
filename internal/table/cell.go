package table

import (
	"fmt"
	"strings"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
	"github.com/epicenterhq/epicenter-go/internal/kv"
)

// separator joins a cell's rowId and columnId into a single LWW key.
// Neither component may contain it.
const separator = ":"

// CellAction mirrors kv.Action at the cell granularity.
type CellAction = kv.Action

const (
	CellAdd    = kv.ActionAdd
	CellUpdate = kv.ActionUpdate
	CellDelete = kv.ActionDelete
)

// CellChange describes one cell's mutation within a transaction.
type CellChange[T any] struct {
	RowID         string
	ColumnID      string
	Action        CellAction
	Value         T
	PreviousValue T
	HasPrevious   bool
}

// CellStore namespaces a single YKeyValueLww[T] by (rowId, columnId).
type CellStore[T any] struct {
	doc *crdt.Document
	lww *kv.YKeyValueLww[T]
}

// NewCellStore creates a CellStore over a fresh LWW KV on doc.
func NewCellStore[T any](doc *crdt.Document, clock *kv.Clock) *CellStore[T] {
	return &CellStore[T]{doc: doc, lww: kv.NewYKeyValueLww[T](doc, clock)}
}

func cellKey(rowID, columnID string) string {
	if strings.Contains(rowID, separator) {
		panic(fmt.Sprintf("table: rowId %q contains reserved separator %q", rowID, separator))
	}
	if strings.Contains(columnID, separator) {
		panic(fmt.Sprintf("table: columnId %q contains reserved separator %q", columnID, separator))
	}
	return rowID + separator + columnID
}

func splitCellKey(key string) (rowID, columnID string) {
	i := strings.Index(key, separator)
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// GetCell returns the current value of (rowID, columnID).
func (cs *CellStore[T]) GetCell(rowID, columnID string) (T, bool) {
	return cs.lww.Get(cellKey(rowID, columnID))
}

// HasCell reports whether (rowID, columnID) currently has a value.
func (cs *CellStore[T]) HasCell(rowID, columnID string) bool {
	return cs.lww.Has(cellKey(rowID, columnID))
}

// SetCell sets the value of (rowID, columnID).
func (cs *CellStore[T]) SetCell(rowID, columnID string, v T) {
	cs.lww.Set(cellKey(rowID, columnID), v)
}

// DeleteCell removes (rowID, columnID). No-op if absent.
func (cs *CellStore[T]) DeleteCell(rowID, columnID string) {
	cs.lww.Delete(cellKey(rowID, columnID))
}

// CellTx is the handle passed to a CellStore.Batch callback.
type CellTx[T any] struct {
	cs *CellStore[T]
}

// SetCell sets a cell within the enclosing batch transaction.
func (tx *CellTx[T]) SetCell(rowID, columnID string, v T) {
	tx.cs.SetCell(rowID, columnID, v)
}

// DeleteCell deletes a cell within the enclosing batch transaction.
func (tx *CellTx[T]) DeleteCell(rowID, columnID string) {
	tx.cs.DeleteCell(rowID, columnID)
}

// Batch coalesces all writes made via tx into a single CRDT transaction so
// observers fire once.
func (cs *CellStore[T]) Batch(fn func(tx *CellTx[T])) {
	cs.doc.Transact(func() {
		fn(&CellTx[T]{cs: cs})
	})
}

// Transact runs fn under the store's document transaction, absorbing any
// nested Batch/RowStore.Delete calls into a single flush. Exposed so
// composed layers (RowStore, the schema helpers) can coalesce multi-step
// operations without reaching into CellStore internals.
func (cs *CellStore[T]) Transact(fn func()) {
	cs.doc.Transact(fn)
}

// Observe registers fn to be called once per transaction with the set of
// cell-level changes it produced.
func (cs *CellStore[T]) Observe(fn func([]CellChange[T])) int {
	return cs.lww.Observe(func(changes map[string]kv.Change[T]) {
		out := make([]CellChange[T], 0, len(changes))
		for key, c := range changes {
			rowID, columnID := splitCellKey(key)
			out = append(out, CellChange[T]{
				RowID: rowID, ColumnID: columnID,
				Action: c.Action, Value: c.Value,
				PreviousValue: c.PreviousValue, HasPrevious: c.HasPrevious,
			})
		}
		fn(out)
	})
}

// Unobserve removes a previously registered observer.
func (cs *CellStore[T]) Unobserve(handle int) {
	cs.lww.Unobserve(handle)
}

// State returns the underlying LWW store's encodable state.
func (cs *CellStore[T]) State() (kv.State, error) {
	return cs.lww.State()
}

// ApplyState merges remote or restored state into the underlying LWW store.
func (cs *CellStore[T]) ApplyState(st kv.State) error {
	return cs.lww.ApplyState(st)
}

// ObserveRaw registers fn on the underlying LWW store's untyped change
// stream, keyed by the joined rowId:columnId cell key.
func (cs *CellStore[T]) ObserveRaw(fn func([]kv.RawChange)) int {
	return cs.lww.ObserveRaw(fn)
}

// UnobserveRaw removes a previously registered raw observer.
func (cs *CellStore[T]) UnobserveRaw(handle int) {
	cs.lww.UnobserveRaw(handle)
}

// rowEntries returns every live (columnId -> value) pair whose key has
// rowID as its prefix, safely (a row "a" never matches cells under "ab").
func (cs *CellStore[T]) rowEntries(rowID string) map[string]T {
	prefix := rowID + separator
	out := make(map[string]T)
	for key, v := range cs.lww.Entries() {
		if strings.HasPrefix(key, prefix) {
			_, columnID := splitCellKey(key)
			out[columnID] = v
		}
	}
	return out
}

// rowKeys returns every live cell key whose rowID prefix matches.
func (cs *CellStore[T]) rowKeys(rowID string) []string {
	prefix := rowID + separator
	var keys []string
	for key := range cs.lww.Entries() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}
