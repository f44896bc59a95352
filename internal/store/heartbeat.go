package store

import (
	"context"
	"database/sql"
	"fmt"
)

// HeartbeatRow is one scheduled task owned by the agent's heartbeat loop.
// last_run and next_run may be NULL for tasks that have never fired.
type HeartbeatRow struct {
	Name     string
	Schedule string
	LastRun  sql.NullString
	NextRun  sql.NullString
	Enabled  bool
}

// HeartbeatEntries returns every scheduled task in name order.
func (d *DB) HeartbeatEntries(ctx context.Context) ([]HeartbeatRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name, COALESCE(schedule, ''), last_run, next_run, COALESCE(enabled, 0)
		FROM heartbeat_entries
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query heartbeat entries: %w", err)
	}
	defer rows.Close()

	var out []HeartbeatRow
	for rows.Next() {
		var h HeartbeatRow
		var enabled int
		if err := rows.Scan(&h.Name, &h.Schedule, &h.LastRun, &h.NextRun, &enabled); err != nil {
			return nil, fmt.Errorf("scan heartbeat entry: %w", err)
		}
		h.Enabled = enabled != 0
		out = append(out, h)
	}
	return out, rows.Err()
}
