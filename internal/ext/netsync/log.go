package netsync

import "sync"

// UpdateLog is the in-memory cursor-ordered log of opaque update blobs a
// relay serves to peers. It implements httpserver.UpdateStore.
type UpdateLog struct {
	mu      sync.Mutex
	updates [][]byte
}

// NewUpdateLog creates an empty log.
func NewUpdateLog() *UpdateLog {
	return &UpdateLog{}
}

// Append records a blob and returns its cursor (1-based; cursor N means N
// blobs recorded).
func (l *UpdateLog) Append(update []byte) (uint64, error) {
	cp := make([]byte, len(update))
	copy(cp, update)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, cp)
	return uint64(len(l.updates)), nil
}

// Since returns every blob recorded after cursor.
func (l *UpdateLog) Since(cursor uint64) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cursor >= uint64(len(l.updates)) {
		return nil, nil
	}
	out := make([][]byte, len(l.updates)-int(cursor))
	for i := range out {
		src := l.updates[int(cursor)+i]
		cp := make([]byte, len(src))
		copy(cp, src)
		out[i] = cp
	}
	return out, nil
}

// Cursor returns the current head cursor.
func (l *UpdateLog) Cursor() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.updates))
}
