package workspace

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
	"github.com/epicenterhq/epicenter-go/internal/kv"
	"github.com/epicenterhq/epicenter-go/internal/schema"
)

// Builder accumulates tables, KV values, extensions, and actions onto a
// single Client under construction. Every step leaves the underlying Client
// fully usable; there is no separate "unfinished" state. A Builder is
// consumed linearly — forking is not supported.
type Builder struct {
	client *Client
}

// Option configures a new workspace Builder.
type Option func(*options)

type options struct {
	replica    crdt.ReplicaID
	hasReplica bool
}

// WithReplicaID pins the workspace's replica identity, for tests needing
// deterministic positional tie-breaks. Production workspaces take the
// random default so distinct processes never collide on entry identity.
func WithReplicaID(id crdt.ReplicaID) Option {
	return func(o *options) {
		o.replica = id
		o.hasReplica = true
	}
}

// NewWorkspace creates a Builder for a fresh root document identified by
// id. gc controls tombstone collection on the root document (gc-on for
// compact KV/table storage is the usual choice; gc-off preserves full
// history, as content documents do).
func NewWorkspace(id string, gc bool, opts ...Option) *Builder {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasReplica {
		o.replica = randomReplicaID()
	}
	return &Builder{client: &Client{
		id:         id,
		doc:        crdt.NewDocument(id, gc, crdt.WithReplicaID(o.replica)),
		clock:      kv.NewClock(),
		tables:     make(map[string]any),
		kvs:        make(map[string]any),
		extensions: make(map[string]Lifecycle),
	}}
}

// randomReplicaID draws a replica identity that distinct processes won't
// share. Entry ordering only needs uniqueness, not secrecy, but
// crypto/rand avoids any seed coordination.
func randomReplicaID() crdt.ReplicaID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return crdt.ReplicaID(1)
	}
	return crdt.ReplicaID(binary.BigEndian.Uint64(buf[:]))
}

// WithTable registers a table under name, backed by a fresh TableHelper[T]
// sharing the workspace's document and clock. Returns b for chaining.
func WithTable[T any](b *Builder, name string, def schema.TableDefinition[T]) *Builder {
	b.client.tables[name] = schema.NewTableHelper(b.client.doc, b.client.clock, def)
	return b
}

// WithKv registers a KV value under name, backed by a fresh KvHelper[T]
// sharing the workspace's document and clock. Returns b for chaining.
func WithKv[T any](b *Builder, name string, def schema.ValueDefinition[T]) *Builder {
	b.client.kvs[name] = schema.NewKvHelper(b.client.doc, b.client.clock, def)
	return b
}

// WithExtension invokes factory with the client-so-far (including every
// previously added extension, enabling strict dependency ordering) and
// registers its Lifecycle under key. Extensions are torn down in
// reverse-insertion order by Client.Destroy.
func (b *Builder) WithExtension(key string, factory func(*Client) Lifecycle) *Builder {
	lc := factory(b.client)
	b.client.extensions[key] = lc
	b.client.extensionOrder = append(b.client.extensionOrder, key)
	return b
}

// WithActions runs fn against the client-so-far and stores its return value
// as the client's action bundle, retrievable later via Actions[T].
func (b *Builder) WithActions(fn func(*Client) any) *Builder {
	b.client.actions = fn(b.client)
	return b
}

// Build returns the assembled Client. The Builder should not be reused
// afterward.
func (b *Builder) Build() *Client {
	return b.client
}
