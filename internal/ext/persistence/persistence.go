package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/epicenterhq/epicenter-go/internal/kv"
	"github.com/epicenterhq/epicenter-go/internal/storage/snapshot"
	"github.com/epicenterhq/epicenter-go/internal/storage/wal"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
	"github.com/epicenterhq/epicenter-go/pkg/crypto/adaptive"
)

// Key is the conventional extension key persistence registers under.
const Key = "persistence"

// Config configures the persistence extension.
type Config struct {
	// Dir is the data directory; the WAL lives in Dir/wal, snapshots in
	// Dir/snapshots.
	Dir string

	// Encryption, if set, encrypts WAL frames and snapshot payloads at
	// rest.
	Encryption *snapshot.EncryptionConfig

	// CompactThreshold is the WAL byte size past which a Snapshot call is
	// taken automatically after an append. Zero disables auto-compaction.
	CompactThreshold int64

	// WAL overrides the derived WAL writer config when non-nil.
	WAL *wal.Config
}

// Persistence is the extension's exported surface.
type Persistence struct {
	cfg    Config
	cipher adaptive.Cipher

	client *workspace.Client

	mu        sync.Mutex
	writer    *wal.Writer
	compactor *wal.Compactor
	snaps     *snapshot.Manager
	handles   map[string]int
	started   bool
	closed    bool
}

// Extension returns a factory for a workspace's .WithExtension chain. The
// factory itself is synchronous; opening the log, restoring state, and
// subscribing to store changes all happen behind WhenReady.
func Extension(cfg Config) func(*workspace.Client) workspace.Lifecycle {
	p := &Persistence{cfg: cfg, handles: make(map[string]int)}
	return func(client *workspace.Client) workspace.Lifecycle {
		p.client = client
		return workspace.Lifecycle{
			WhenReady: p.start,
			Destroy:   p.Close,
			Exports:   p,
		}
	}
}

func (p *Persistence) walDir() string  { return filepath.Join(p.cfg.Dir, "wal") }
func (p *Persistence) snapDir() string { return filepath.Join(p.cfg.Dir, "snapshots") }

// start restores durable state into the workspace's stores, then begins
// tailing their changes into the WAL.
func (p *Persistence) start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return nil
	}

	if p.cfg.Dir == "" {
		return errors.New("persistence: dir is required")
	}
	if p.cfg.Encryption != nil {
		enc := *p.cfg.Encryption
		saltPath := filepath.Join(p.cfg.Dir, "salt")
		if len(enc.Passphrase) > 0 && enc.Salt == nil {
			// Reuse the salt from the previous run, or a passphrase-derived
			// key could never decrypt what it wrote before.
			if b, rerr := os.ReadFile(saltPath); rerr == nil && len(b) > 0 {
				enc.Salt = b
			}
		}
		cipher, salt, err := snapshot.NewCipherFromConfig(enc)
		if err != nil {
			return fmt.Errorf("persistence: encryption: %w", err)
		}
		p.cipher = cipher
		if len(salt) > 0 && enc.Salt == nil {
			if err := os.MkdirAll(p.cfg.Dir, 0o700); err != nil {
				return fmt.Errorf("persistence: data dir: %w", err)
			}
			if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
				return fmt.Errorf("persistence: persist key salt: %w", err)
			}
		}
	}

	snaps, err := snapshot.NewManager(snapshot.Config{
		Dir:    p.snapDir(),
		Cipher: p.cipher,
		NodeID: p.client.ID(),
	})
	if err != nil {
		return err
	}
	p.snaps = snaps

	if err := p.restoreLocked(); err != nil {
		return err
	}

	walCfg := wal.DefaultConfig(p.walDir())
	if p.cfg.WAL != nil {
		walCfg = *p.cfg.WAL
		walCfg.Dir = p.walDir()
	}
	walCfg.Cipher = p.cipher
	walCfg.NodeID = p.client.ID()
	w, err := wal.NewWriter(walCfg)
	if err != nil {
		return err
	}
	p.writer = w
	p.compactor = wal.NewCompactor(p.walDir())

	for ns, store := range p.client.Stores() {
		ns, store := ns, store
		p.handles[ns] = store.ObserveRaw(func(changes []kv.RawChange) {
			p.appendChanges(ns, changes)
		})
	}
	p.started = true
	return nil
}

// restoreLocked loads the newest snapshot, replays the WAL past its
// offset, and applies the result to each store.
func (p *Persistence) restoreLocked() error {
	states := make(map[string]*kv.State)
	ensure := func(ns string) *kv.State {
		st, ok := states[ns]
		if !ok {
			st = &kv.State{}
			states[ns] = st
		}
		return st
	}

	records, info, err := p.snaps.Load()
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshots):
	case err != nil:
		return fmt.Errorf("persistence: load snapshot: %w", err)
	default:
		for _, rec := range records {
			var se kv.StateEntry
			if uerr := json.Unmarshal(rec.Value, &se); uerr != nil {
				return fmt.Errorf("persistence: decode snapshot record %s/%s: %w", rec.Namespace, rec.Key, uerr)
			}
			st := ensure(rec.Namespace)
			st.Entries = append(st.Entries, se)
		}
	}

	var sinceOffset uint64
	if info != nil {
		sinceOffset = info.WALLastOffset
	}

	reader, err := wal.NewReader(p.walDir(), p.cipher)
	if err == nil {
		defer reader.Close()
		if serr := reader.Seek(sinceOffset); serr == nil {
			entries, rerr := reader.ReadAll()
			if rerr != nil {
				return fmt.Errorf("persistence: replay wal: %w", rerr)
			}
			for _, e := range entries {
				if e.Record == nil {
					continue
				}
				st := ensure(e.Record.Namespace)
				switch e.OpType {
				case wal.OpTypeSet:
					var se kv.StateEntry
					if uerr := json.Unmarshal(e.Record.Value, &se); uerr != nil {
						return fmt.Errorf("persistence: decode wal record %s/%s: %w", e.Record.Namespace, e.Record.Key, uerr)
					}
					st.Entries = append(st.Entries, se)
				case wal.OpTypeDelete:
					st.Tombstones = append(st.Tombstones, kv.Tombstone{Key: e.Record.Key, Ts: e.Record.Ts})
				}
			}
		}
	}

	stores := p.client.Stores()
	for ns, st := range states {
		store, ok := stores[ns]
		if !ok {
			// A namespace no longer registered on this workspace; its
			// records stay in the log untouched.
			continue
		}
		if err := store.ApplyState(*st); err != nil {
			return fmt.Errorf("persistence: restore %s: %w", ns, err)
		}
	}
	return nil
}

// appendChanges writes one transaction's raw changes for a namespace to
// the WAL, then auto-compacts past the configured threshold.
func (p *Persistence) appendChanges(ns string, changes []kv.RawChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil || p.closed {
		return
	}

	for _, c := range changes {
		var entry *wal.Entry
		if c.Op == kv.RawDelete {
			entry = wal.NewDeleteEntry(ns, c.Entry.Key)
			entry.Record.Ts = c.Entry.Ts
		} else {
			val, err := json.Marshal(c.Entry)
			if err != nil {
				continue
			}
			entry = wal.NewSetEntry(&wal.Record{
				Namespace: ns,
				Key:       c.Entry.Key,
				Value:     val,
				Ts:        c.Entry.Ts,
			})
		}
		_ = p.writer.Append(entry)
	}

	if p.cfg.CompactThreshold > 0 && p.compactor.NeedsCompaction(p.cfg.CompactThreshold) {
		_ = p.snapshotLocked()
	}
}

// Snapshot captures every store's current state into a snapshot file and
// compacts WAL segments the snapshot covers.
func (p *Persistence) Snapshot() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.closed {
		return errors.New("persistence: not running")
	}
	return p.snapshotLocked()
}

func (p *Persistence) snapshotLocked() error {
	var records []snapshot.Record
	namespaces := make([]string, 0)
	stores := p.client.Stores()
	for ns := range stores {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		st, err := stores[ns].State()
		if err != nil {
			return fmt.Errorf("persistence: snapshot %s: %w", ns, err)
		}
		for _, se := range st.Entries {
			val, err := json.Marshal(se)
			if err != nil {
				return fmt.Errorf("persistence: encode %s/%s: %w", ns, se.Key, err)
			}
			records = append(records, snapshot.Record{
				Namespace: ns, Key: se.Key, Value: val, Ts: se.Ts,
			})
		}
	}

	if err := p.writer.Flush(); err != nil {
		return err
	}
	offset := p.writer.CurrentOffset()
	info, err := p.snaps.Create(records, offset)
	if err != nil {
		return err
	}
	if err := p.compactor.Compact(info.WALLastOffset); err != nil {
		return err
	}
	return p.snaps.Prune()
}

// WALSize returns the total on-disk WAL byte size.
func (p *Persistence) WALSize() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.compactor == nil {
		return 0
	}
	size, err := p.compactor.TotalSize()
	if err != nil {
		return 0
	}
	return size
}

// ClearData wipes the WAL and every snapshot. The in-memory workspace is
// untouched; a subsequent restart starts from empty durable state.
func (p *Persistence) ClearData() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			errs = append(errs, err)
		}
		p.writer = nil
	}
	if err := os.RemoveAll(p.walDir()); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(p.snapDir()); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(filepath.Join(p.cfg.Dir, "content")); err != nil {
		errs = append(errs, err)
	}

	if p.started && !p.closed {
		// Reopen a fresh log so the extension keeps tailing.
		walCfg := wal.DefaultConfig(p.walDir())
		if p.cfg.WAL != nil {
			walCfg = *p.cfg.WAL
			walCfg.Dir = p.walDir()
		}
		walCfg.Cipher = p.cipher
		walCfg.NodeID = p.client.ID()
		w, err := wal.NewWriter(walCfg)
		if err != nil {
			errs = append(errs, err)
		} else {
			p.writer = w
		}
		snaps, err := snapshot.NewManager(snapshot.Config{
			Dir: p.snapDir(), Cipher: p.cipher, NodeID: p.client.ID(),
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			p.snaps = snaps
		}
	}
	return errors.Join(errs...)
}

// Close stops tailing, flushes, and closes the log. Idempotent.
func (p *Persistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	stores := p.client.Stores()
	for ns, handle := range p.handles {
		if store, ok := stores[ns]; ok {
			store.UnobserveRaw(handle)
		}
	}
	p.handles = map[string]int{}

	if p.writer != nil {
		err := p.writer.Close()
		p.writer = nil
		return err
	}
	return nil
}
