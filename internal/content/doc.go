// Package content implements the per-file version timeline: a gc-off CRDT
// document (guid = file id) holding an ordered log of version entries, the
// wire format for file content itself.
//
// A Go-native simplification from the nested shared-type model: text/
// richtext bodies are stored as plain Go strings mutated in place via
// crdt.Array.UpdateAt rather than as a separate character-level sequence
// CRDT (Y.Text/Y.XmlFragment's concurrent-editing algorithm). Nothing in
// the tested properties requires concurrent sub-entry text merge — only
// that same-mode edits preserve the entry's identity (no new timeline
// index) and that mode switches never touch prior entries. Both hold here:
// UpdateAt keeps the EntryID fixed, and a mode switch always Pushes a fresh
// entry.
package content
