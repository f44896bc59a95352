package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KVAll returns the full key-value table as a map. Missing keys are an
// expected state for a young agent, so an empty map is a valid result.
func (d *DB) KVAll(ctx context.Context) (map[string]string, error) {
	return d.readPairs(ctx, `SELECT key, value FROM kv`)
}

// KVGet returns a single value from the kv table. The second return is
// false when the key has never been written.
func (d *DB) KVGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read kv %q: %w", key, err)
	}
	return value, true, nil
}

// IdentityAll returns the agent's identity table (name, address). The
// identity is immutable after creation and read-only to the sidecar.
func (d *DB) IdentityAll(ctx context.Context) (map[string]string, error) {
	return d.readPairs(ctx, `SELECT key, value FROM identity`)
}

func (d *DB) readPairs(ctx context.Context, query string) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
