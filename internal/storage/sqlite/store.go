// Package sqlite implements the storage interfaces on a single SQLite
// database using the CGO-free modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store implements storage.EmbeddingStore, storage.EventStore,
// storage.CoOccurrenceStore, storage.TrendingStore, storage.RecentStore,
// and storage.CatalogStore on one SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at dsn and initialises the
// schema. Use ":memory:" for an in-memory database in tests.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty
	// database, so pin the pool to a single connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// WAL allows concurrent readers while the aggregators write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetDB exposes the underlying connection for callers that need direct
// access (stats endpoints, tests).
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
