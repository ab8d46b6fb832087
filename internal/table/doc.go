// Package table implements the cell/row composition layer on top of
// internal/kv's YKeyValueLww: CellStore namespaces cells as rowId:columnId
// keys over a single LWW KV instance, and RowStore reconstructs whole rows
// from CellStore by prefix scan without storing anything of its own.
package table
