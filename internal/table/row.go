package table

import "sort"

// RowStore composes over a CellStore to add row semantics — get, existence,
// enumeration, bulk delete — without storing anything of its own; a row's
// identity is purely derived from the set of cells sharing its prefix.
type RowStore[T any] struct {
	cs *CellStore[T]
}

// NewRowStore creates a RowStore over an existing CellStore.
func NewRowStore[T any](cs *CellStore[T]) *RowStore[T] {
	return &RowStore[T]{cs: cs}
}

// Get reconstructs the row's columnId -> value map. Returns false if no
// cell with the rowID prefix exists.
func (rs *RowStore[T]) Get(rowID string) (map[string]T, bool) {
	cells := rs.cs.rowEntries(rowID)
	if len(cells) == 0 {
		return nil, false
	}
	return cells, true
}

// Has reports whether any cell exists for rowID. Prefix-safe: a row named
// "a" never matches cells stored under "ab".
func (rs *RowStore[T]) Has(rowID string) bool {
	prefix := rowID + separator
	for key := range rs.cs.lww.Entries() {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// IDs returns every distinct rowID with at least one live cell, sorted.
func (rs *RowStore[T]) IDs() []string {
	seen := make(map[string]struct{})
	for key := range rs.cs.lww.Entries() {
		rowID, _ := splitCellKey(key)
		seen[rowID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of distinct live rows.
func (rs *RowStore[T]) Count() int {
	return len(rs.IDs())
}

// GetAll assembles every live row into rowID -> (columnId -> value).
func (rs *RowStore[T]) GetAll() map[string]map[string]T {
	out := make(map[string]map[string]T)
	for key, v := range rs.cs.lww.Entries() {
		rowID, columnID := splitCellKey(key)
		row, ok := out[rowID]
		if !ok {
			row = make(map[string]T)
			out[rowID] = row
		}
		row[columnID] = v
	}
	return out
}

// Delete removes every cell for rowID in one transaction.
func (rs *RowStore[T]) Delete(rowID string) {
	keys := rs.cs.rowKeys(rowID)
	if len(keys) == 0 {
		return
	}
	rs.cs.doc.Transact(func() {
		for _, key := range keys {
			rs.cs.lww.Delete(key)
		}
	})
}

// Observe registers fn to be called once per transaction with the set of
// rowIDs it affected.
func (rs *RowStore[T]) Observe(fn func(map[string]struct{})) int {
	return rs.cs.Observe(func(changes []CellChange[T]) {
		rowIDs := make(map[string]struct{})
		for _, c := range changes {
			rowIDs[c.RowID] = struct{}{}
		}
		fn(rowIDs)
	})
}

// Unobserve removes a previously registered observer.
func (rs *RowStore[T]) Unobserve(handle int) {
	rs.cs.Unobserve(handle)
}
