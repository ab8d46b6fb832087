// Package crdt implements the append-only, single-writer CRDT substrate that
// the rest of the storage core is built on: a Document owns a set of
// ordered Arrays, mutated only inside Transact, with observers firing
// exactly once per outermost transaction.
//
// There is no external CRDT library in play here — the ordering and merge
// rules below (clientID-tie-broken total order, transaction-batched observer
// dispatch) are the hand-rolled equivalent of a Yjs array, sized for a
// single process rather than a general-purpose replicated document store.
package crdt
