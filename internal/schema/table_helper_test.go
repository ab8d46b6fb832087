package schema

import (
	"encoding/json"
	"testing"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
)

type post struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func postDef() TableDefinition[post] {
	return TableDefinition[post]{
		ValueDefinition: ValueDefinition[post]{
			Validate: func(p post) []FieldError {
				if p.Title == "" {
					return []FieldError{{Path: "title", Message: "required"}}
				}
				return nil
			},
		},
		RowID: func(p post) string { return p.ID },
	}
}

func TestTableHelper_SetGet(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postDef())

	if err := th.Set(post{ID: "p1", Title: "hello"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	r := th.Get("p1")
	if r.Status != StatusValid {
		t.Fatalf("Get(p1).Status = %v, want StatusValid", r.Status)
	}
	if r.Value.Title != "hello" {
		t.Errorf("Get(p1).Value.Title = %q, want hello", r.Value.Title)
	}
}

func TestTableHelper_GetNotFound(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postDef())

	r := th.Get("missing")
	if r.Status != StatusNotFound {
		t.Fatalf("Status = %v, want StatusNotFound", r.Status)
	}
}

func TestTableHelper_SetRejectsInvalidRow(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postDef())

	err := th.Set(post{ID: "p1", Title: ""})
	if err == nil {
		t.Fatal("Set() error = nil, want ValidationError")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if th.Get("p1").Status != StatusNotFound {
		t.Fatal("invalid Set must not write anything")
	}
}

func TestTableHelper_DeleteThenGetNotFound(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postDef())

	th.Set(post{ID: "p1", Title: "hello"})
	th.Delete("p1")

	if th.Get("p1").Status != StatusNotFound {
		t.Fatal("Get(p1) after Delete should be StatusNotFound")
	}
}

// TestTableHelper_ReadYourWritesInBatch checks that a row set and deleted
// inside one batch reads back correctly at each step.
func TestTableHelper_ReadYourWritesInBatch(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postDef())

	var fireCount int
	var lastRowIDs map[string]struct{}
	th.Observe(func(rowIDs map[string]struct{}) {
		fireCount++
		lastRowIDs = rowIDs
	})

	var duringStatus, afterDeleteStatus Status
	doc.Transact(func() {
		th.Set(post{ID: "p1", Title: "hello"})
		duringStatus = th.Get("p1").Status
		th.Delete("p1")
		afterDeleteStatus = th.Get("p1").Status
	})

	if duringStatus != StatusValid {
		t.Errorf("in-batch Get status = %v, want StatusValid", duringStatus)
	}
	if afterDeleteStatus != StatusNotFound {
		t.Errorf("in-batch Get after delete = %v, want StatusNotFound", afterDeleteStatus)
	}
	if fireCount != 1 {
		t.Fatalf("fireCount = %d, want 1", fireCount)
	}
	if _, ok := lastRowIDs["p1"]; !ok {
		t.Errorf("rowIDs = %v, want to include p1", lastRowIDs)
	}
}

// postV2 renames v1's "name" field to "title" and stamps migrated rows
// with an asymmetric version marker: v1 rows carry no _v at all.
type postV2 struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	V     int    `json:"_v,omitempty"`
}

func postV2Def() TableDefinition[postV2] {
	return TableDefinition[postV2]{
		ValueDefinition: ValueDefinition[postV2]{
			Migrate: func(fields map[string]json.RawMessage) map[string]json.RawMessage {
				if _, ok := fields["_v"]; ok {
					return fields
				}
				out := make(map[string]json.RawMessage, len(fields)+1)
				for k, v := range fields {
					out[k] = v
				}
				if name, ok := out["name"]; ok {
					out["title"] = name
					delete(out, "name")
				}
				out["_v"] = json.RawMessage("2")
				return out
			},
			Validate: func(p postV2) []FieldError {
				if p.Title == "" {
					return []FieldError{{Path: "title", Message: "required"}}
				}
				return nil
			},
		},
		RowID: func(p postV2) string { return p.ID },
	}
}

func TestTableHelper_MigrationUpgradesOldRowsOnRead(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postV2Def())

	// A v1 row persisted before the rename, written at the cell level the
	// way an old build would have left it.
	th.cells.SetCell("p1", "id", []byte(`"p1"`))
	th.cells.SetCell("p1", "name", []byte(`"old title"`))

	r := th.Get("p1")
	if r.Status != StatusValid {
		t.Fatalf("migrated Get status = %v (%v), want StatusValid", r.Status, r.Errors)
	}
	if r.Value.Title != "old title" {
		t.Errorf("migrated Title = %q, want %q", r.Value.Title, "old title")
	}
	if r.Value.V != 2 {
		t.Errorf("migrated _v = %d, want 2", r.Value.V)
	}

	// A row already at v2 passes through the migration untouched.
	if err := th.Set(postV2{ID: "p2", Title: "fresh", V: 2}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if r := th.Get("p2"); r.Status != StatusValid || r.Value.Title != "fresh" {
		t.Fatalf("v2 row after migration = %+v, want valid fresh", r)
	}
}

func TestTableHelper_GetAllValidFiltersInvalid(t *testing.T) {
	doc := crdt.NewDocument("d1", true)
	th := NewTableHelper(doc, nil, postDef())

	th.Set(post{ID: "p1", Title: "ok"})

	// Write a row directly that bypasses Set's validation, to simulate
	// data that predates a schema tightening.
	th.cells.SetCell("p2", "id", []byte(`"p2"`))
	th.cells.SetCell("p2", "title", []byte(`""`))

	valid := th.GetAllValid()
	if len(valid) != 1 || valid[0].ID != "p1" {
		t.Fatalf("GetAllValid() = %+v, want only p1", valid)
	}

	all := th.GetAll()
	if len(all) != 2 {
		t.Fatalf("GetAll() len = %d, want 2", len(all))
	}
}
