// Package qb builds and runs single-table statements from a fluent, mutable
// TableQuery. Statements are written with @name placeholders; the Builder binds
// them for the connected dialect (sqlite keeps named parameters, mysql rewrites
// to ?, postgres to $n).
//
// Rows are mapped through the Row interface: a row exports its columns as
// ordered Values and populates itself from a Cursor. SelectOne and SelectMany
// derive the projection, and the key WHERE clause, from a blank row.
package qb
