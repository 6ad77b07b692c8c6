// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - EventStore: Idempotent event persistence with merge-on-upsert
//   - InstitutionStore: Institution identity persistence
//   - SchedulerStore: Scheduled task persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.bankwatch/data/bankwatch.db
//
// # Thread Safety
//
// All operations are thread-safe. Upserts for the same event identity are
// serialized through a per-fingerprint lock on top of SQLite's WAL-mode
// database locking; upserts for different identities proceed independently.
package sqlite
