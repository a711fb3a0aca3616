// Package sqlite provides a unified SQLite-based implementation of the
// sheetdex persistence ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - ChunkStore: Workbook records and their chunk arenas
//   - EmbeddingStore: Embedding cache keyed by content hash
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sheetdex/data/sheetdex.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. ApplyChanges commits a workbook's record and chunk
// changes in one transaction.
package sqlite
