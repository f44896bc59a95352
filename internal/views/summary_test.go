package views

import (
	"context"
	"strings"
	"testing"
)

func TestSummary_FullReport(t *testing.T) {
	handle, rw := newFixture(t)
	mustExec(t, rw, `INSERT INTO kv (key, value) VALUES ('agent_state', 'running')`)
	mustExec(t, rw, `INSERT INTO kv (key, value) VALUES ('start_time', '2026-08-27T12:00:00.000Z')`)
	mustExec(t, rw, `INSERT INTO kv (key, value) VALUES ('last_credit_check', '{"credits":500,"tier":"normal"}')`)
	mustExec(t, rw, `INSERT INTO kv (key, value) VALUES ('last_usdc_check', '{"balance":1.25}')`)
	mustExec(t, rw, `INSERT INTO turns (id, timestamp, thinking, tool_calls)
		VALUES (1, '2026-08-29T11:30:00.000Z', 'checking balance
before sleep', '[{"name":"web_search","duration_ms":80},{"name":"bash","duration_ms":20},{"name":"web_search","duration_ms":60}]')`)
	mustExec(t, rw, `INSERT INTO transactions (id, created_at, type, amount_cents, balance_after_cents, description)
		VALUES ('t1', '2026-08-29T09:00:00.000Z', 'earned', 300, 800, 'skill sale')`)
	mustExec(t, rw, `INSERT INTO transactions (id, created_at, type, amount_cents, balance_after_cents, description)
		VALUES ('t2', '2026-08-29T10:00:00.000Z', 'spent', -120, 680, 'inference')`)
	mustExec(t, rw, `INSERT INTO children (id, name, address, sandbox_id, status, funded_amount_cents, created_at)
		VALUES ('c1', 'scout', '0xabc', 'sb1', 'running', 100, '2026-08-28T10:00:00.000Z')`)

	report, err := newReconciler().Summary(context.Background(), handle)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	lines := strings.Split(report, "\n")
	if len(lines) != 8 {
		t.Fatalf("report has %d lines, want 8:\n%s", len(lines), report)
	}
	if lines[0] != "AUTOMATON STATUS REPORT" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[2] != "Agent: running | Tier: normal | Uptime: 2d 0h" {
		t.Fatalf("vitals line = %q", lines[2])
	}
	// Nonzero cached credits override the ledger balance here.
	if lines[3] != "Credits: $5.00 | USDC: 1.250000" {
		t.Fatalf("credits line = %q", lines[3])
	}
	if !strings.HasPrefix(lines[4], `Last turn: #1 "checking balance before sleep"`) {
		t.Fatalf("last turn line = %q", lines[4])
	}
	if lines[5] != "Tool calls (last hour): web_search(2), bash(1)" {
		t.Fatalf("tool line = %q", lines[5])
	}
	if lines[6] != "Transactions (24h): +$3.00 earned, -$1.20 spent, net +$1.80" {
		t.Fatalf("ledger line = %q", lines[6])
	}
	if lines[7] != "Children: 1 running" {
		t.Fatalf("children line = %q", lines[7])
	}
}

func TestSummary_EmptyStore(t *testing.T) {
	handle, _ := newFixture(t)

	report, err := newReconciler().Summary(context.Background(), handle)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	lines := strings.Split(report, "\n")
	if lines[2] != "Agent: unknown | Tier: unknown | Uptime: unknown" {
		t.Fatalf("vitals line = %q", lines[2])
	}
	if lines[3] != "Credits: $0.00 | USDC: 0.000000" {
		t.Fatalf("credits line = %q", lines[3])
	}
	if lines[4] != `Last turn: #0 "n/a" (n/a)` {
		t.Fatalf("last turn line = %q", lines[4])
	}
	if lines[5] != "Tool calls (last hour): none" {
		t.Fatalf("tool line = %q", lines[5])
	}
	if lines[6] != "Transactions (24h): +$0.00 earned, -$0.00 spent, net +$0.00" {
		t.Fatalf("ledger line = %q", lines[6])
	}
	if lines[7] != "Children: 0 running" {
		t.Fatalf("children line = %q", lines[7])
	}
}

func TestSummary_NetNegative(t *testing.T) {
	handle, rw := newFixture(t)
	mustExec(t, rw, `INSERT INTO transactions (id, created_at, type, amount_cents, balance_after_cents, description)
		VALUES ('t1', '2026-08-29T10:00:00.000Z', 'spent', -340, 660, 'inference')`)

	report, err := newReconciler().Summary(context.Background(), handle)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	lines := strings.Split(report, "\n")
	if lines[6] != "Transactions (24h): +$0.00 earned, -$3.40 spent, net $-3.40" {
		t.Fatalf("ledger line = %q", lines[6])
	}
	// Ledger balance feeds the credit figure when no credit check exists.
	if lines[3] != "Credits: $6.60 | USDC: 0.000000" {
		t.Fatalf("credits line = %q", lines[3])
	}
}
