// Package schema implements the validated row/value accessors sitting atop
// internal/table: TableHelper and KvHelper return a tagged Result
// (valid/invalid/not_found) instead of raising on read, support the three
// recognized versioning patterns via a Migration function applied before
// validation, and accept single-or-many arguments through one variadic
// surface.
package schema
