// Package storage is the player registry and the notification log.
//
// Drivers:
//   - "file": JSON snapshot of players plus an append-only JSON Lines notification log
//   - "sqlite": single database file (modernc.org/sqlite, no cgo)
//   - "postgres": pgx connection pool
//
// All drivers share the same semantics: AddPlayer is insert-if-absent,
// UpdatePlayer writes only the fields that are set and reports ErrNotFound
// for unknown keys, and notification records are append-only.
package storage
