// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// SQLiteBackend persists entries in a single-table SQLite database so the
// cache survives restarts, the way browser storage does.
type SQLiteBackend struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens (creating if needed) the cache database at path.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// bound to one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	if path != ":memory:" {
		// Ignore errors: permissions might not be fixable on all systems
		_ = os.Chmod(path, 0600)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Get(key string) ([]byte, bool, error) {
	if err := b.check(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := b.db.QueryRow(`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(key string, value []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	_, err := b.db.Exec(
		`INSERT INTO cache_entries (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(key string) error {
	if err := b.check(); err != nil {
		return err
	}
	if _, err := b.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Keys() ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	rows, err := b.db.Query(`SELECT key FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Size returns the summed length of all stored values.
func (b *SQLiteBackend) Size() (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	var total sql.NullInt64
	if err := b.db.QueryRow(`SELECT SUM(LENGTH(value)) FROM cache_entries`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to compute cache size: %w", err)
	}
	return int(total.Int64), nil
}

func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func (b *SQLiteBackend) check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}
