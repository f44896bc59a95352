package store

import (
	"context"
	"fmt"
)

// ChildRow is an agent spawned by this automaton.
type ChildRow struct {
	ID                string
	Name              string
	Address           string
	SandboxID         string
	Status            string
	FundedAmountCents int64
	CreatedAt         string
}

// Children returns all spawned agents, newest first.
func (d *DB) Children(ctx context.Context) ([]ChildRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(address, ''), COALESCE(sandbox_id, ''),
		       COALESCE(status, ''), COALESCE(funded_amount_cents, 0), created_at
		FROM children
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var out []ChildRow
	for rows.Next() {
		var c ChildRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.SandboxID, &c.Status, &c.FundedAmountCents, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RunningChildrenCount returns how many spawned agents report running status.
func (d *DB) RunningChildrenCount(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM children WHERE status = 'running'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count running children: %w", err)
	}
	return count, nil
}
