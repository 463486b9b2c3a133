// Package stores provides the persistence layer for migration plans
// and their execution history.
//
// Two implementations are available: SQLiteStore, backed by an
// embedded SQLite database with schema migrations, and MemoryStore, a
// process-local store used by tests and ad hoc CLI runs. Both satisfy
// the Store interface and return copies of stored data, so callers
// can mutate results without corrupting the store.
package stores
