// Package ledger persists per-request spend.
//
// Three backends implement Ledger:
//
//   - Memory: process-local, the default
//   - SQLite: a WAL-mode file, via modernc.org/sqlite or mattn/go-sqlite3
//   - Postgres: a shared database via lib/pq
//
// Open picks one from the ledger section of the configuration.
package ledger
