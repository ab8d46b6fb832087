package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
	"github.com/epicenterhq/epicenter-go/internal/kv"
	"github.com/epicenterhq/epicenter-go/internal/schema"
)

// Lifecycle is what an extension factory returns: readiness, teardown, and
// whatever it exports for downstream typed access via Extension[T].
type Lifecycle struct {
	// WhenReady blocks until the extension has finished any asynchronous
	// setup. Nil means the extension is ready as soon as the factory
	// returns.
	WhenReady func(ctx context.Context) error
	// Destroy tears the extension down. Nil means there is nothing to do.
	Destroy func() error
	// Exports is the extension's public surface, retrieved later via
	// Extension[T](client, key).
	Exports any
}

// Client is the running instance of a workspace: the root CRDT document,
// its registered tables and KV values, and whatever extensions were chained
// onto the Builder that produced it.
type Client struct {
	id    string
	doc   *crdt.Document
	clock *kv.Clock

	mu             sync.RWMutex
	tables         map[string]any
	kvs            map[string]any
	extensions     map[string]Lifecycle
	extensionOrder []string
	actions        any
}

// StateStore is the durable/wire surface every registered table and KV
// helper exposes: encodable state for snapshots and peer exchange, plus the
// untyped change stream a write-ahead log tails. The persistence and sync
// extensions consume workspaces exclusively through it.
type StateStore interface {
	State() (kv.State, error)
	ApplyState(kv.State) error
	ObserveRaw(fn func([]kv.RawChange)) int
	UnobserveRaw(handle int)
}

// ID returns the workspace's document guid.
func (c *Client) ID() string { return c.id }

// Clock returns the monotonic clock shared by every table and KV value in
// this workspace, so extensions creating their own stores on the root
// document converge against the same timeline.
func (c *Client) Clock() *kv.Clock { return c.clock }

// Stores returns every registered table and KV value as a StateStore,
// keyed by a namespace of the form "table/<name>" or "kv/<name>".
func (c *Client) Stores() map[string]StateStore {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]StateStore, len(c.tables)+len(c.kvs))
	for name, v := range c.tables {
		if ss, ok := v.(StateStore); ok {
			out["table/"+name] = ss
		}
	}
	for name, v := range c.kvs {
		if ss, ok := v.(StateStore); ok {
			out["kv/"+name] = ss
		}
	}
	return out
}

// Document returns the root CRDT document backing every table and KV value
// in this workspace.
func (c *Client) Document() *crdt.Document { return c.doc }

// Batch wraps the root document's transaction primitive: every table/cell/KV
// mutation made inside fn fires at most one observer notification per
// affected namespace. Nested Batch calls are absorbed into the outer
// transaction (crdt.Document.Transact is reentrant).
func (c *Client) Batch(fn func()) {
	c.doc.Transact(fn)
}

// Table retrieves a previously registered table by name, type-asserting it
// to TableHelper[T]. Panics if name was never registered, or was registered
// with a different T — a programmer error, not a runtime condition to
// recover from.
func Table[T any](c *Client, name string) *schema.TableHelper[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tables[name]
	if !ok {
		panic(fmt.Sprintf("workspace: no table registered with name %q", name))
	}
	th, ok := v.(*schema.TableHelper[T])
	if !ok {
		panic(fmt.Sprintf("workspace: table %q was registered with a different type", name))
	}
	return th
}

// Kv retrieves a previously registered KV value by name, type-asserting it
// to KvHelper[T]. Panics on an absent or mismatched name.
func Kv[T any](c *Client, name string) *schema.KvHelper[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.kvs[name]
	if !ok {
		panic(fmt.Sprintf("workspace: no kv registered with name %q", name))
	}
	kh, ok := v.(*schema.KvHelper[T])
	if !ok {
		panic(fmt.Sprintf("workspace: kv %q was registered with a different type", name))
	}
	return kh
}

// Extension retrieves a previously registered extension's exports by key,
// type-asserting them to T. Panics on an absent key or a type mismatch.
func Extension[T any](c *Client, key string) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lc, ok := c.extensions[key]
	if !ok {
		panic(fmt.Sprintf("workspace: no extension registered with key %q", key))
	}
	exports, ok := lc.Exports.(T)
	if !ok {
		panic(fmt.Sprintf("workspace: extension %q exports a different type than requested", key))
	}
	return exports
}

// Actions retrieves the client's action bundle, type-asserting it to T.
// Panics if WithActions was never called, or was called with a different T.
func Actions[T any](c *Client) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.actions.(T)
	if !ok {
		panic("workspace: actions were never registered, or registered with a different type")
	}
	return v
}

// WhenReady waits for every extension's WhenReady to complete, aggregating
// any failures. Returns immediately if there are no extensions.
func (c *Client) WhenReady(ctx context.Context) error {
	c.mu.RLock()
	order := append([]string(nil), c.extensionOrder...)
	exts := make(map[string]Lifecycle, len(order))
	for _, k := range order {
		exts[k] = c.extensions[k]
	}
	c.mu.RUnlock()

	if len(order) == 0 {
		return nil
	}

	errs := make([]error, len(order))
	var wg sync.WaitGroup
	for i, key := range order {
		lc := exts[key]
		if lc.WhenReady == nil {
			continue
		}
		wg.Add(1)
		go func(i int, key string, lc Lifecycle) {
			defer wg.Done()
			if err := lc.WhenReady(ctx); err != nil {
				errs[i] = fmt.Errorf("workspace: extension %q: %w", key, err)
			}
		}(i, key, lc)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Destroy tears down extensions in reverse-insertion (LIFO) order, then
// releases the root document. Failures are aggregated, not short-circuited,
// so one misbehaving extension never prevents the rest from tearing down.
func (c *Client) Destroy() error {
	c.mu.Lock()
	order := append([]string(nil), c.extensionOrder...)
	exts := make(map[string]Lifecycle, len(order))
	for _, k := range order {
		exts[k] = c.extensions[k]
	}
	c.extensionOrder = nil
	c.extensions = make(map[string]Lifecycle)
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		key := order[i]
		lc := exts[key]
		if lc.Destroy == nil {
			continue
		}
		if err := lc.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("workspace: destroy extension %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
