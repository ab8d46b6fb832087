// Package cmap provides a concurrent map implementation for the workspace runtime.
//
// This package implements a sharded concurrent map optimized for
// high-throughput registries such as the content-document pool, with the
// following features:
//
//   - Sharding: Configurable shard count for parallelism
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Optimistic Locking: Version-based compare-and-swap updates
//   - Iteration: Safe iteration while holding read locks
//
// Usage:
//
//	m := cmap.NewWithShards[string, *Doc](32)
//	m.Set("key", doc)
//	val, ok := m.Get("key")
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete) use Lock.
//
package cmap
