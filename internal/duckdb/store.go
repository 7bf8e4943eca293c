// Package duckdb stores session reports (gate decisions and duplicate
// groups) in DuckDB so they can be queried after a run. The fingerprint
// index itself is never persisted; it is rebuilt every session.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for session reports.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS decisions (
		session VARCHAR,
		seq BIGINT,
		decided_at TIMESTAMP,
		source VARCHAR,
		tag VARCHAR,
		verdict VARCHAR,
		existing VARCHAR,
		size BIGINT,
		fingerprint VARCHAR,
		error VARCHAR
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS duplicate_groups (
		session VARCHAR,
		group_id INTEGER,
		position INTEGER,
		path VARCHAR,
		size BIGINT,
		fingerprint VARCHAR
	)`)
	return err
}
