// Package store reads the automaton's SQLite state store. Every access
// opens the database read-only for the duration of one request and closes
// it before returning control; no connection is ever cached. The store is
// owned and written exclusively by the agent process.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// ErrStoreUnavailable is returned when the state store file is missing or
// cannot be opened. It is the only error class that surfaces to callers as
// a request failure; per-field decode problems never reach this level.
var ErrStoreUnavailable = errors.New("state store unavailable")

// Reader hands out short-lived read-only handles to the state store.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the configured state store location.
func (r *Reader) Path() string {
	return r.path
}

// Open stats the store file and opens it read-only. Callers must Close the
// returned handle on every exit path.
func (r *Reader) Open(ctx context.Context) (*DB, error) {
	if _, err := os.Stat(r.path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, r.path)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", r.path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite3: %v", ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	handle := &DB{db: db}
	if err := handle.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return handle, nil
}

// DB is a single-request read handle.
type DB struct {
	db *sql.DB
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Ping performs a trivial round-trip, used by the health probe.
func (d *DB) Ping(ctx context.Context) error {
	var one int
	if err := d.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping state store: %w", err)
	}
	return nil
}
