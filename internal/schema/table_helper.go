package schema

import (
	"encoding/json"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
	"github.com/epicenterhq/epicenter-go/internal/kv"
	"github.com/epicenterhq/epicenter-go/internal/table"
)

// TableHelper is a schema-validated row accessor over a table.RowStore. Row
// values are spread across cells as their JSON field map, and reconstructed
// the same way on read.
type TableHelper[T any] struct {
	cells *table.CellStore[json.RawMessage]
	rows  *table.RowStore[json.RawMessage]
	def   TableDefinition[T]
}

// NewTableHelper creates a TableHelper over a fresh cell store on doc.
func NewTableHelper[T any](doc *crdt.Document, clock *kv.Clock, def TableDefinition[T]) *TableHelper[T] {
	cells := table.NewCellStore[json.RawMessage](doc, clock)
	return &TableHelper[T]{
		cells: cells,
		rows:  table.NewRowStore(cells),
		def:   def,
	}
}

// Get returns the tagged Result for rowID: not_found if no cell exists,
// invalid if the assembled row fails validation (or migration/unmarshal),
// valid otherwise.
func (th *TableHelper[T]) Get(rowID string) Result[T] {
	cells, ok := th.rows.Get(rowID)
	if !ok {
		return Result[T]{Status: StatusNotFound}
	}
	return decode(cells, th.def.ValueDefinition)
}

// GetAll returns every row's Result, including invalid ones.
func (th *TableHelper[T]) GetAll() []Result[T] {
	all := th.rows.GetAll()
	out := make([]Result[T], 0, len(all))
	for _, cells := range all {
		out = append(out, decode(cells, th.def.ValueDefinition))
	}
	return out
}

// GetAllValid returns only the rows that currently validate.
func (th *TableHelper[T]) GetAllValid() []T {
	var out []T
	for _, r := range th.GetAll() {
		if r.Status == StatusValid {
			out = append(out, r.Value)
		}
	}
	return out
}

// Filter returns every valid row matching pred.
func (th *TableHelper[T]) Filter(pred func(T) bool) []T {
	var out []T
	for _, v := range th.GetAllValid() {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of distinct rows (valid or not).
func (th *TableHelper[T]) Count() int {
	return th.rows.Count()
}

// Set validates and writes one or more rows in a single transaction.
// Validation is strict: the first invalid row aborts the whole call before
// any cell is written.
func (th *TableHelper[T]) Set(rows ...T) error {
	rows = oneOrMany(rows...)
	for _, row := range rows {
		if th.def.Validate != nil {
			if errs := th.def.Validate(row); len(errs) > 0 {
				return &ValidationError{Fields: errs}
			}
		}
	}

	th.cells.Batch(func(tx *table.CellTx[json.RawMessage]) {
		for _, row := range rows {
			rowID := th.def.RowID(row)
			fields, err := fieldsOf(row)
			if err != nil {
				continue
			}
			for col, v := range fields {
				tx.SetCell(rowID, col, v)
			}
		}
	})
	return nil
}

// Delete removes one or more rows in a single transaction.
func (th *TableHelper[T]) Delete(ids ...string) {
	ids = oneOrMany(ids...)
	th.cells.Transact(func() {
		for _, id := range ids {
			th.rows.Delete(id)
		}
	})
}

// State returns the table's cell-level encodable state.
func (th *TableHelper[T]) State() (kv.State, error) {
	return th.cells.State()
}

// ApplyState merges remote or restored cell-level state into the table.
func (th *TableHelper[T]) ApplyState(st kv.State) error {
	return th.cells.ApplyState(st)
}

// ObserveRaw registers fn on the table's untyped cell change stream.
func (th *TableHelper[T]) ObserveRaw(fn func([]kv.RawChange)) int {
	return th.cells.ObserveRaw(fn)
}

// UnobserveRaw removes a previously registered raw observer.
func (th *TableHelper[T]) UnobserveRaw(handle int) {
	th.cells.UnobserveRaw(handle)
}

// Observe registers fn to be called once per transaction with the set of
// rowIDs it affected.
func (th *TableHelper[T]) Observe(fn func(map[string]struct{})) int {
	return th.rows.Observe(fn)
}

// Unobserve removes a previously registered observer.
func (th *TableHelper[T]) Unobserve(handle int) {
	th.rows.Unobserve(handle)
}
