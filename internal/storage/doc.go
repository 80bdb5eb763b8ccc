// Package storage is the relational persistence layer.
//
// It supports:
//   - PostgreSQL (postgres:// and postgresql:// URLs, lib/pq)
//   - SQLite (file: and sqlite: URLs or *.db paths, modernc.org/sqlite)
//
// The schema is embedded per dialect and applied idempotently on Open.
// Queries are written with '?' placeholders and rebound by sqlx.
package storage
