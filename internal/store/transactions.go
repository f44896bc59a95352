package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TransactionRow is one credit ledger entry. Amounts are stored signed;
// presentation decides how to render direction.
type TransactionRow struct {
	ID                string
	CreatedAt         string
	Type              string
	AmountCents       int64
	BalanceAfterCents int64
	Description       string
}

// RecentTransactions returns ledger entries newest first.
func (d *DB) RecentTransactions(ctx context.Context, limit int) ([]TransactionRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, created_at, COALESCE(type, ''), COALESCE(amount_cents, 0),
		       COALESCE(balance_after_cents, 0), COALESCE(description, '')
		FROM transactions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionRow
	for rows.Next() {
		var tx TransactionRow
		if err := rows.Scan(&tx.ID, &tx.CreatedAt, &tx.Type, &tx.AmountCents, &tx.BalanceAfterCents, &tx.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// LatestBalanceAfter returns the running balance recorded by the newest
// ledger entry. The second return is false when the ledger is empty.
func (d *DB) LatestBalanceAfter(ctx context.Context) (int64, bool, error) {
	var balance int64
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance_after_cents, 0)
		FROM transactions
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query latest balance: %w", err)
	}
	return balance, true, nil
}

// TransactionsSince returns type and amount for every ledger entry newer
// than the given ISO timestamp. Used for rolling-window income/expense
// rollups; ordering is not significant.
func (d *DB) TransactionsSince(ctx context.Context, since string) ([]TransactionRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT COALESCE(type, ''), COALESCE(amount_cents, 0)
		FROM transactions
		WHERE created_at > ?
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query transactions since: %w", err)
	}
	defer rows.Close()

	var out []TransactionRow
	for rows.Next() {
		var tx TransactionRow
		if err := rows.Scan(&tx.Type, &tx.AmountCents); err != nil {
			return nil, fmt.Errorf("scan transaction window: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
