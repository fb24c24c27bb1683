// Package store persists playback bookmarks in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	mocaperrors "github.com/tessro/mocap/internal/errors"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		position REAL NOT NULL,
		elapsedMs INTEGER NOT NULL,
		durationMs INTEGER NOT NULL,
		updatedAt REAL NOT NULL
	);
`

// Bookmark is a saved playback position for one recording.
type Bookmark struct {
	ID        string        `json:"id"`
	Path      string        `json:"path"`
	Name      string        `json:"name"`
	Position  float64       `json:"position"`
	Elapsed   time.Duration `json:"elapsed"`
	Duration  time.Duration `json:"duration"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store provides access to the bookmark database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns the default database path.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(dir, "mocap", "bookmarks.sqlite"), nil
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the bookmark for b.Path. The stored ID is kept
// across updates.
func (s *Store) Save(b Bookmark) (*Bookmark, error) {
	if b.Path == "" {
		return nil, errors.New("bookmark path is required")
	}
	b.UpdatedAt = s.now()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	_, err := s.db.Exec(`
		INSERT INTO bookmarks (id, path, name, position, elapsedMs, durationMs, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			position = excluded.position,
			elapsedMs = excluded.elapsedMs,
			durationMs = excluded.durationMs,
			updatedAt = excluded.updatedAt
	`, b.ID, b.Path, b.Name, b.Position, b.Elapsed.Milliseconds(), b.Duration.Milliseconds(), unixSeconds(b.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("save bookmark: %w", err)
	}

	return s.Get(b.Path)
}

// Get returns the bookmark for path, or ErrBookmarkNotFound.
func (s *Store) Get(path string) (*Bookmark, error) {
	row := s.db.QueryRow(`
		SELECT id, path, name, position, elapsedMs, durationMs, updatedAt
		FROM bookmarks
		WHERE path = ?
	`, path)

	b, err := scanBookmark(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", path, mocaperrors.ErrBookmarkNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan bookmark: %w", err)
	}
	return b, nil
}

// List returns all bookmarks, most recently updated first.
func (s *Store) List() ([]Bookmark, error) {
	rows, err := s.db.Query(`
		SELECT id, path, name, position, elapsedMs, durationMs, updatedAt
		FROM bookmarks
		ORDER BY updatedAt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Delete removes the bookmark for path.
func (s *Store) Delete(path string) error {
	res, err := s.db.Exec(`DELETE FROM bookmarks WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", path, mocaperrors.ErrBookmarkNotFound)
	}
	return nil
}

// Clear removes every bookmark and returns how many were removed.
func (s *Store) Clear() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM bookmarks`)
	if err != nil {
		return 0, fmt.Errorf("clear bookmarks: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(sc scanner) (*Bookmark, error) {
	var b Bookmark
	var elapsedMs, durationMs int64
	var updatedAt float64
	if err := sc.Scan(&b.ID, &b.Path, &b.Name, &b.Position, &elapsedMs, &durationMs, &updatedAt); err != nil {
		return nil, err
	}
	b.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	b.Duration = time.Duration(durationMs) * time.Millisecond
	b.UpdatedAt = timeFromUnix(updatedAt)
	return &b, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
