// Package storage persists the last server-confirmed document and session
// snapshots to a local SQLite database so the CLI can show something useful
// before the first round-trip completes (or when the server is unreachable).
package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

const metaKeyRefreshedAt = "refreshed_at"

// Cache is a snapshot store over SQLite. Refreshes replace entire tables
// inside a transaction; a crashed refresh leaves the previous snapshot.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path. The parent directory
// and the file itself are created with private permissions since document
// titles can be sensitive.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "create cache directory").
				WithContext("path", dir)
		}
	}
	if err := ensurePrivateFile(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "open cache database").
			WithContext("path", path)
	}

	// One writer at a time; WAL lets reads proceed during a refresh.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "configure cache database")
		}
	}

	// Schema is idempotent via CREATE TABLE IF NOT EXISTS.
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "apply cache schema")
	}

	return &Cache{db: db}, nil
}

func ensurePrivateFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeStorageRead, "stat cache file").
			WithContext("path", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "create cache file").
			WithContext("path", path)
	}
	return f.Close()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// ReplaceDocuments swaps the cached document snapshot for docs.
func (c *Cache) ReplaceDocuments(docs []client.Document) error {
	return c.replace("cached_documents", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO cached_documents
				(document_id, filename, original_filename, file_size, status, page_count, total_chunks, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, d := range docs {
			if _, err := stmt.Exec(d.ID, d.Filename, d.OriginalFilename, d.FileSize, d.Status, d.PageCount, d.TotalChunks, d.CreatedAt); err != nil {
				return fmt.Errorf("insert document %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// Documents returns the cached document snapshot, newest first by rowid of
// insertion order (the order the server returned them in).
func (c *Cache) Documents() ([]client.Document, error) {
	rows, err := c.db.Query(`
		SELECT document_id, filename, original_filename, file_size, status, page_count, total_chunks, created_at
		FROM cached_documents
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "read cached documents")
	}
	defer rows.Close()

	var docs []client.Document
	for rows.Next() {
		var d client.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.OriginalFilename, &d.FileSize, &d.Status, &d.PageCount, &d.TotalChunks, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "scan cached document")
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "read cached documents")
	}
	return docs, nil
}

// ReplaceSessions swaps the cached chat session snapshot for sessions.
func (c *Cache) ReplaceSessions(sessions []client.ChatSession) error {
	return c.replace("cached_sessions", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO cached_sessions
				(session_id, title, status, message_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range sessions {
			if _, err := stmt.Exec(s.ID, s.Title, s.Status, s.MessageCount, s.CreatedAt, s.UpdatedAt); err != nil {
				return fmt.Errorf("insert session %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// Sessions returns the cached chat session snapshot.
func (c *Cache) Sessions() ([]client.ChatSession, error) {
	rows, err := c.db.Query(`
		SELECT session_id, title, status, message_count, created_at, updated_at
		FROM cached_sessions
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "read cached sessions")
	}
	defer rows.Close()

	var sessions []client.ChatSession
	for rows.Next() {
		var s client.ChatSession
		if err := rows.Scan(&s.ID, &s.Title, &s.Status, &s.MessageCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "scan cached session")
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "read cached sessions")
	}
	return sessions, nil
}

// RefreshedAt reports when either snapshot was last replaced. The zero time
// means the cache has never been filled.
func (c *Cache) RefreshedAt() (time.Time, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM cache_meta WHERE key = ?`, metaKeyRefreshedAt).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrCodeStorageRead, "read cache meta")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

// replace runs DELETE-then-insert for one table in a single transaction and
// stamps the refresh time.
func (c *Cache) replace(table string, insert func(*sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "begin cache refresh")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "clear cache table").
			WithContext("table", table)
	}
	if err := insert(tx); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "fill cache table").
			WithContext("table", table)
	}
	if _, err := tx.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, metaKeyRefreshedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "stamp cache refresh")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "commit cache refresh")
	}
	return nil
}
