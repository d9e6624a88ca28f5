/*
Package localstore provides the client's durable local key-value store.

It persists small per-user settings, currently the chat username, in a SQLite
database under the client's data directory, surviving restarts the way a
browser's localStorage would.
*/
package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// fileName is the SQLite database file created inside the data directory.
const fileName = "collabchat.db"

// Store is a SQLite-backed key-value store.
type Store struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens the SQLite database, and
// ensures the settings table exists.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// The store is single-client; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize local store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, or "" if the key is absent.
func (s *Store) Get(key string) (string, error) {
	var value string

	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q from local store: %w", key, err)
	}

	return value, nil
}

// Set stores value under key, replacing any existing value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %q to local store: %w", key, err)
	}

	return nil
}
