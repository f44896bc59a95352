package views

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/automatonhq/sidecar/internal/otel"
	"github.com/automatonhq/sidecar/internal/store"
)

// Summary renders the plain-text status report. Unlike the status view, the
// credit figure here starts from the ledger and only a nonzero cached
// credit check overrides it; both orderings predate this code and the
// divergence is kept as-is. Time windows (last hour, last 24h) are relative
// to request time, so the report is not reproducible afterwards.
func (r *Reconciler) Summary(ctx context.Context, db *store.DB) (string, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "views.summary", otel.AttrView.String("summary"))
	defer span.End()
	defer r.observe(ctx, "summary", time.Now())

	kv, err := db.KVAll(ctx)
	if err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	}
	turnCount, err := db.TurnCount(ctx)
	if err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	}

	now := r.now()

	credits := int64(0)
	if balance, ok, err := db.LatestBalanceAfter(ctx); err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	} else if ok {
		credits = balance
	}
	tier := "unknown"
	if raw := kv["last_credit_check"]; raw != "" {
		var check creditCheck
		if err := json.Unmarshal([]byte(raw), &check); err == nil {
			// Zero cached credits never beat the ledger figure.
			if check.Credits != nil && *check.Credits != 0 {
				credits = int64(*check.Credits)
			}
			if check.Tier != nil {
				tier = *check.Tier
			}
		}
	}

	usdc, _ := decodeUSDCBalance(kv["last_usdc_check"])

	uptime := "unknown"
	if started := kv["start_time"]; started != "" {
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			elapsed := now.Sub(t)
			days := int(elapsed.Hours()) / 24
			hours := int(elapsed.Hours()) % 24
			uptime = fmt.Sprintf("%dd %dh", days, hours)
		}
	}

	lastThinking, lastTimestamp := "n/a", "n/a"
	if turn, ok, err := db.LatestTurn(ctx, 100); err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	} else if ok {
		if s := strings.TrimSpace(strings.ReplaceAll(turn.Thinking, "\n", " ")); s != "" {
			lastThinking = s
		}
		if turn.Timestamp != "" {
			lastTimestamp = turn.Timestamp
		}
	}

	toolSummary, err := r.toolTally(ctx, db, now.Add(-time.Hour))
	if err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	}

	earned, spent, err := r.ledgerWindow(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	}
	net := earned - spent
	netStr := fmt.Sprintf("$%.2f", float64(net)/100)
	if net >= 0 {
		netStr = "+" + netStr
	}

	running, err := db.RunningChildrenCount(ctx)
	if err != nil {
		return "", fmt.Errorf("summary view: %w", err)
	}

	lines := []string{
		"AUTOMATON STATUS REPORT",
		"=======================",
		fmt.Sprintf("Agent: %s | Tier: %s | Uptime: %s", orDefault(kv["agent_state"], "unknown"), tier, uptime),
		fmt.Sprintf("Credits: $%.2f | USDC: %.6f", float64(credits)/100, usdc),
		fmt.Sprintf("Last turn: #%d %q (%s)", turnCount, lastThinking, lastTimestamp),
		fmt.Sprintf("Tool calls (last hour): %s", toolSummary),
		fmt.Sprintf("Transactions (24h): +$%.2f earned, -$%.2f spent, net %s", float64(earned)/100, float64(spent)/100, netStr),
		fmt.Sprintf("Children: %d running", running),
	}
	return strings.Join(lines, "\n"), nil
}

// toolTally returns a frequency-sorted "name(count), ..." list of tool
// invocations since the cutoff, or "none".
func (r *Reconciler) toolTally(ctx context.Context, db *store.DB, since time.Time) (string, error) {
	blobs, err := db.ToolCallBlobsSince(ctx, isoTime(since))
	if err != nil {
		return "", err
	}

	freq := map[string]int{}
	for _, blob := range blobs {
		calls, defaulted := decodeToolCalls(blob)
		if defaulted {
			r.countDefault(ctx, "tool_calls")
		}
		for _, call := range calls {
			freq[call.Name]++
		}
	}
	if len(freq) == 0 {
		return "none", nil
	}

	names := make([]string, 0, len(freq))
	for name := range freq {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if freq[names[i]] != freq[names[j]] {
			return freq[names[i]] > freq[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s(%d)", name, freq[name]))
	}
	return strings.Join(parts, ", "), nil
}

// ledgerWindow sums income (earned, deposit) against everything else as
// expense, using absolute values, over entries since the cutoff.
func (r *Reconciler) ledgerWindow(ctx context.Context, db *store.DB, since time.Time) (earned, spent int64, err error) {
	rows, err := db.TransactionsSince(ctx, isoTime(since))
	if err != nil {
		return 0, 0, err
	}
	for _, tx := range rows {
		switch tx.Type {
		case "earned", "deposit":
			earned += tx.AmountCents
		default:
			spent += abs64(tx.AmountCents)
		}
	}
	return earned, spent, nil
}
