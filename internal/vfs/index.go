package vfs

import (
	"sort"
	"sync"

	"github.com/epicenterhq/epicenter-go/internal/schema"
)

// Index is the in-memory derivation of the active portion of the files
// table: path -> id and parent -> children maps, kept current by
// subscribing to the table's change events. It is an exact mirror — every
// query answers from memory without touching the table.
type Index struct {
	table *schema.TableHelper[FileRow]

	mu       sync.RWMutex
	rows     map[string]FileRow  // active rows by id
	children map[string][]string // parent id (RootID = root) -> child ids
	pathToID map[string]string

	obsHandle int
}

// NewIndex builds an Index over the files table and subscribes to its
// changes. Orphans found during the initial build — rows whose parent no
// longer exists — are re-parented to root in the table itself.
func NewIndex(table *schema.TableHelper[FileRow]) *Index {
	idx := &Index{table: table}
	idx.rebuild()
	idx.obsHandle = table.Observe(idx.onTableChange)
	return idx
}

// Close unsubscribes the index from the table.
func (idx *Index) Close() {
	idx.table.Unobserve(idx.obsHandle)
}

// rebuild derives the full index from the table, fixing up orphans.
func (idx *Index) rebuild() {
	rows := make(map[string]FileRow)
	for _, r := range idx.table.GetAllValid() {
		if r.Active() {
			rows[r.ID] = r
		}
	}

	// Orphan fix-up: a row whose parent is gone (deleted on another
	// replica, or trashed out from under it) re-parents to root so it
	// stays reachable.
	var orphans []FileRow
	for id, r := range rows {
		if r.ParentID == RootID {
			continue
		}
		if _, ok := rows[r.ParentID]; !ok {
			r.ParentID = RootID
			rows[id] = r
			orphans = append(orphans, r)
		}
	}
	if len(orphans) > 0 {
		_ = idx.table.Set(orphans...)
	}

	idx.mu.Lock()
	idx.rows = rows
	idx.deriveLocked()
	idx.mu.Unlock()
}

// deriveLocked recomputes children and pathToID from rows. Must hold
// idx.mu.
func (idx *Index) deriveLocked() {
	idx.children = make(map[string][]string)
	for id, r := range idx.rows {
		idx.children[r.ParentID] = append(idx.children[r.ParentID], id)
	}
	for _, ids := range idx.children {
		sort.Strings(ids)
	}

	idx.pathToID = make(map[string]string, len(idx.rows))
	for id := range idx.rows {
		if p, ok := idx.pathLocked(id); ok {
			idx.pathToID[p] = id
		}
	}
}

// pathLocked walks the parent chain to compute a row's absolute path.
// Returns false on a broken chain or cycle.
func (idx *Index) pathLocked(id string) (string, bool) {
	var parts []string
	for hops := 0; id != RootID; hops++ {
		if hops > len(idx.rows) {
			return "", false
		}
		r, ok := idx.rows[id]
		if !ok {
			return "", false
		}
		parts = append(parts, r.Name)
		id = r.ParentID
	}
	p := ""
	for i := len(parts) - 1; i >= 0; i-- {
		p += "/" + parts[i]
	}
	if p == "" {
		p = "/"
	}
	return p, true
}

// onTableChange folds a transaction's affected row ids into the index.
// Renames and reparents invalidate descendant paths, so the derived maps
// are recomputed from the updated row set; the row set itself updates
// incrementally from the change set.
func (idx *Index) onTableChange(rowIDs map[string]struct{}) {
	idx.mu.Lock()
	for id := range rowIDs {
		res := idx.table.Get(id)
		if res.Status == schema.StatusValid && res.Value.Active() {
			idx.rows[id] = res.Value
		} else {
			delete(idx.rows, id)
		}
	}
	idx.deriveLocked()
	idx.mu.Unlock()
}

// IDForPath resolves an absolute, already-normalized path to a file id.
func (idx *Index) IDForPath(p string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	id, ok := idx.pathToID[p]
	return id, ok
}

// PathForID returns the absolute path of an active row.
func (idx *Index) PathForID(id string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.pathLocked(id)
}

// Row returns a copy of an active row.
func (idx *Index) Row(id string) (FileRow, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	r, ok := idx.rows[id]
	return r, ok
}

// Children returns the sorted child ids of a parent (RootID for root).
func (idx *Index) Children(parentID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := idx.children[parentID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// ChildByName finds parentID's active child named name.
func (idx *Index) ChildByName(parentID, name string) (FileRow, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, id := range idx.children[parentID] {
		if r := idx.rows[id]; r.Name == name {
			return r, true
		}
	}
	return FileRow{}, false
}

// Len returns the number of active rows.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rows)
}
