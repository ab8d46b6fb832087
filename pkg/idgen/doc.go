// Package idgen generates the identifiers the workspace layer hands out:
// file ids, workspace guids, and the short suffixes used to disambiguate
// colliding sibling names in directory listings.
//
// Identifiers are ULIDs: lexicographically sortable by creation time, safe
// in paths and URLs, and free of the reserved ':' cell-key separator.
package idgen
