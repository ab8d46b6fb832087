// Package workspace assembles a root CRDT document, its typed tables and KV
// values, and a set of extensions into a single running client.
//
// Go methods cannot introduce new type parameters beyond their receiver's,
// so the chainable "accumulate a heterogeneous map of typed things" builder
// is split into package-level generic functions (WithTable, WithKv) plus
// typed getters (Table, Kv, Extension, Actions) that panic on an absent or
// mismatched key — the programmer-error-on-misuse analogue of a type-level
// accumulator that would otherwise be enforced at compile time.
package workspace
