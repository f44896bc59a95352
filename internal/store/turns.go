package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TurnRow is one reasoning/action cycle as persisted by the agent.
// Thinking carries only a bounded prefix; ToolCalls is the raw serialized
// JSON blob, decoded leniently by the views layer.
type TurnRow struct {
	ID          int64
	Timestamp   string
	State       string
	InputSource string
	Thinking    string
	ToolCalls   string
}

// thinkingPrefixLen bounds the rationale prefix pulled out of the store;
// full thinking text can be large and is never displayed whole.
const thinkingPrefixLen = 200

// TurnCount returns the total number of recorded turns.
func (d *DB) TurnCount(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return count, nil
}

// RecentTurns returns the most recent turns in descending timestamp order.
func (d *DB) RecentTurns(ctx context.Context, limit int) ([]TurnRow, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, timestamp, COALESCE(state, ''), COALESCE(input_source, ''),
		       COALESCE(substr(thinking, 1, %d), ''), COALESCE(tool_calls, '[]')
		FROM turns
		ORDER BY timestamp DESC
		LIMIT ?
	`, thinkingPrefixLen), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRow
	for rows.Next() {
		var t TurnRow
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.State, &t.InputSource, &t.Thinking, &t.ToolCalls); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestTurn returns the newest turn with the thinking prefix bounded to
// the given length. The second return is false when no turns exist yet.
func (d *DB) LatestTurn(ctx context.Context, prefixLen int) (TurnRow, bool, error) {
	var t TurnRow
	err := d.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, timestamp, COALESCE(substr(thinking, 1, %d), '')
		FROM turns
		ORDER BY timestamp DESC
		LIMIT 1
	`, prefixLen)).Scan(&t.ID, &t.Timestamp, &t.Thinking)
	if errors.Is(err, sql.ErrNoRows) {
		return TurnRow{}, false, nil
	}
	if err != nil {
		return TurnRow{}, false, fmt.Errorf("query latest turn: %w", err)
	}
	return t, true, nil
}

// ToolCallBlobsSince returns the raw tool_calls blobs for turns newer than
// the given ISO-8601 timestamp. Timestamps are stored as UTC ISO strings,
// so lexicographic comparison matches chronological order.
func (d *DB) ToolCallBlobsSince(ctx context.Context, since string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT COALESCE(tool_calls, '[]') FROM turns WHERE timestamp > ?
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query tool calls since: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan tool calls: %w", err)
		}
		out = append(out, blob)
	}
	return out, rows.Err()
}
