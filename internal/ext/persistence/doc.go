// Package persistence is the workspace persistence extension: it tails
// every registered store's change stream into a write-ahead log, compacts
// the log into checksummed snapshots, and restores both into the stores
// when the workspace comes back up.
//
// The extension consumes workspaces purely through the StateStore surface
// — it never reaches into table or KV internals. WAL records carry the
// store's own wire entries (kv.StateEntry JSON), so a restored replica
// reproduces LWW timestamps and positional tie-breaks exactly.
package persistence
