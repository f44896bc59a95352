package views

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/automatonhq/sidecar/internal/otel"
	"github.com/automatonhq/sidecar/internal/store"
)

const (
	defaultLimit = 20
	// maxLimit caps caller-supplied page sizes; the store is small but the
	// limit arrives straight off the query string.
	maxLimit = 200

	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// Reconciler turns raw store rows into derived views. Stateless apart from
// the injected clock; safe for concurrent use.
type Reconciler struct {
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *otel.Metrics
	now     func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(log *slog.Logger, tracer trace.Tracer, metrics *otel.Metrics, opts ...Option) *Reconciler {
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otel.TracerName)
	}
	r := &Reconciler{
		log:     log,
		tracer:  tracer,
		metrics: metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// isoTime formats a timestamp the way the agent writes them into the store,
// so lexicographic comparisons against stored values stay valid.
func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func (r *Reconciler) observe(ctx context.Context, view string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ViewDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(otel.AttrView.String(view)))
}

// Status computes the vital-signs view. Credit and tier come primarily from
// the cached credit check; a strictly positive balance-after on the newest
// ledger entry supersedes the cached credit figure, because the ledger is
// written at transaction time while the check may be stale.
func (r *Reconciler) Status(ctx context.Context, db *store.DB) (Status, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "views.status", otel.AttrView.String("status"))
	defer span.End()
	defer r.observe(ctx, "status", time.Now())

	kv, err := db.KVAll(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status view: %w", err)
	}
	identity, err := db.IdentityAll(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status view: %w", err)
	}
	turnCount, err := db.TurnCount(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status view: %w", err)
	}

	credits, tier, defaulted := decodeCreditCheck(kv["last_credit_check"])
	if defaulted {
		r.countDefault(ctx, "last_credit_check")
	}
	usdc, defaulted := decodeUSDCBalance(kv["last_usdc_check"])
	if defaulted {
		r.countDefault(ctx, "last_usdc_check")
	}

	if balance, ok, err := db.LatestBalanceAfter(ctx); err != nil {
		return Status{}, fmt.Errorf("status view: %w", err)
	} else if ok && balance > 0 {
		credits = balance
	}

	out := Status{
		AgentState:   orDefault(kv["agent_state"], "unknown"),
		SurvivalTier: tier,
		CreditsCents: credits,
		USDCBalance:  usdc,
		TurnCount:    turnCount,
		UptimeSince:  orDefault(kv["start_time"], isoTime(r.now())),
		Name:         orDefault(identity["name"], "automaton"),
		Address:      orDefault(identity["address"], zeroAddress),
	}
	return out, nil
}

// Turns computes the recent-turns view: newest first, page-relative
// countdown ordinals, three-level summary fallback.
func (r *Reconciler) Turns(ctx context.Context, db *store.DB, limit int) ([]Turn, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "views.turns", otel.AttrView.String("turns"))
	defer span.End()
	defer r.observe(ctx, "turns", time.Now())

	rows, err := db.RecentTurns(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("turns view: %w", err)
	}

	out := make([]Turn, 0, len(rows))
	for i, row := range rows {
		calls, defaulted := decodeToolCalls(row.ToolCalls)
		if defaulted {
			r.countDefault(ctx, "tool_calls")
		}
		out = append(out, Turn{
			ID:         row.ID,
			TurnNumber: len(rows) - i,
			Timestamp:  row.Timestamp,
			Summary:    turnSummary(row.Thinking, row.InputSource),
			ToolCalls:  calls,
		})
	}
	return out, nil
}

// turnSummary collapses the rationale prefix to a single line, falling back
// to the input source, falling back to a fixed placeholder.
func turnSummary(thinking, inputSource string) string {
	s := strings.TrimSpace(strings.ReplaceAll(thinking, "\n", " "))
	if s == "" {
		s = inputSource
	}
	if s == "" {
		s = "thinking..."
	}
	return s
}

// Transactions computes the ledger view. Amounts are reported absolute;
// sign lives in the type.
func (r *Reconciler) Transactions(ctx context.Context, db *store.DB, limit int) ([]Transaction, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "views.transactions", otel.AttrView.String("transactions"))
	defer span.End()
	defer r.observe(ctx, "transactions", time.Now())

	rows, err := db.RecentTransactions(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("transactions view: %w", err)
	}

	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, Transaction{
			ID:          row.ID,
			Timestamp:   row.CreatedAt,
			Type:        row.Type,
			AmountCents: abs64(row.AmountCents),
			Description: row.Description,
		})
	}
	return out, nil
}

// Heartbeat computes the scheduler view. A missing last-ping value reads as
// "just pinged": the optimistic default is indistinguishable from a real
// ping at request time, a known ambiguity carried on purpose. When a task
// has no stored next-run, it is computed from the schedule expression.
func (r *Reconciler) Heartbeat(ctx context.Context, db *store.DB) (Heartbeat, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "views.heartbeat", otel.AttrView.String("heartbeat"))
	defer span.End()
	defer r.observe(ctx, "heartbeat", time.Now())

	lastPingRaw, _, err := db.KVGet(ctx, "last_heartbeat_ping")
	if err != nil {
		return Heartbeat{}, fmt.Errorf("heartbeat view: %w", err)
	}
	lastPing, defaulted := decodeHeartbeatPing(lastPingRaw)
	if defaulted {
		r.countDefault(ctx, "last_heartbeat_ping")
		lastPing = isoTime(r.now())
	}

	rows, err := db.HeartbeatEntries(ctx)
	if err != nil {
		return Heartbeat{}, fmt.Errorf("heartbeat view: %w", err)
	}

	tasks := make([]ScheduledTask, 0, len(rows))
	for _, row := range rows {
		task := ScheduledTask{
			Name:   row.Name,
			Cron:   row.Schedule,
			Status: "paused",
		}
		if row.Enabled {
			task.Status = "active"
		}
		if row.LastRun.Valid {
			v := row.LastRun.String
			task.LastRun = &v
		}
		if row.NextRun.Valid {
			v := row.NextRun.String
			task.NextRun = &v
		} else if next, ok := r.nextRunFromSchedule(row.Schedule); ok {
			task.NextRun = &next
		}
		tasks = append(tasks, task)
	}

	return Heartbeat{LastPing: lastPing, ScheduledTasks: tasks}, nil
}

// nextRunFromSchedule derives the next fire time from a standard cron
// expression. Unparseable expressions leave next-run unset.
func (r *Reconciler) nextRunFromSchedule(expr string) (string, bool) {
	if expr == "" {
		return "", false
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return "", false
	}
	return isoTime(sched.Next(r.now())), true
}

// Children projects spawned sub-agents. Name falls back to the row id.
func (r *Reconciler) Children(ctx context.Context, db *store.DB) ([]Child, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "views.children", otel.AttrView.String("children"))
	defer span.End()
	defer r.observe(ctx, "children", time.Now())

	rows, err := db.Children(ctx)
	if err != nil {
		return nil, fmt.Errorf("children view: %w", err)
	}

	out := make([]Child, 0, len(rows))
	for _, row := range rows {
		out = append(out, Child{
			ID:           row.ID,
			Name:         orDefault(row.Name, row.ID),
			State:        orDefault(row.Status, "unknown"),
			Tier:         "normal",
			CreditsCents: row.FundedAmountCents,
			SpawnedAt:    row.CreatedAt,
		})
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
