// Package kv implements the append-log key-value layer over internal/crdt:
// YKeyValue (positional, rightmost-wins) and YKeyValueLww (timestamped,
// last-write-wins with a self-healing monotonic clock). Both give O(1)
// lookup over an append-only array via an in-memory index, with
// read-your-writes pending overlays for values written earlier in an
// in-flight transaction.
package kv
