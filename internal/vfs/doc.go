// Package vfs implements the collaborative virtual filesystem: a flat
// metadata table of file rows indexed by path, with per-file content held
// in pooled content documents.
//
// Structure is metadata-only — a file's location is its row's (parentId,
// name) pair, so moves and renames never touch content. Content flows
// through the content-document pool on demand; a file whose bytes are
// never read or written never materializes a document.
//
// Deletion is soft: rm stamps trashedAt and the row drops out of the
// in-memory path index, but stays in the table. Reclamation is a policy
// question left to callers.
package vfs
