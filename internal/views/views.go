// Package views computes the derived telemetry views from raw state store
// rows. Every view is deterministic given the rows and the clock, and never
// fails because of malformed embedded data: per-field decode problems fall
// back to type-appropriate defaults. Only store-level errors propagate.
package views

// Status is the reconciled vital-signs view of the agent.
type Status struct {
	AgentState   string  `json:"agentState"`
	SurvivalTier string  `json:"survivalTier"`
	CreditsCents int64   `json:"creditsCents"`
	USDCBalance  float64 `json:"usdcBalance"`
	TurnCount    int64   `json:"turnCount"`
	UptimeSince  string  `json:"uptimeSince"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
}

// ToolCall is one tool invocation decoded from a turn's embedded blob.
type ToolCall struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"durationMs"`
}

// Turn is one reasoning cycle prepared for display. TurnNumber is a
// page-relative countdown ordinal: the newest row on the page gets the
// highest number. It shifts across pages with different limits; known
// limitation, kept deliberately.
type Turn struct {
	ID         int64      `json:"id"`
	TurnNumber int        `json:"turnNumber"`
	Timestamp  string     `json:"timestamp"`
	Summary    string     `json:"summary"`
	ToolCalls  []ToolCall `json:"toolCalls"`
}

// Transaction is one ledger entry for display. AmountCents is always the
// absolute value; direction is conveyed by Type.
type Transaction struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amountCents"`
	Description string `json:"description"`
}

// ScheduledTask is one heartbeat entry with its enabled flag mapped to a
// display status.
type ScheduledTask struct {
	Name    string  `json:"name"`
	Cron    string  `json:"cron"`
	LastRun *string `json:"lastRun"`
	NextRun *string `json:"nextRun"`
	Status  string  `json:"status"`
}

// Heartbeat is the scheduler view.
type Heartbeat struct {
	LastPing       string          `json:"lastPing"`
	ScheduledTasks []ScheduledTask `json:"scheduledTasks"`
}

// Child is a spawned sub-agent summary. Tier is always "normal": the store
// does not track per-child tiers, so the real value is unknown here.
type Child struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	Tier         string `json:"tier"`
	CreditsCents int64  `json:"creditsCents"`
	SpawnedAt    string `json:"spawnedAt"`
}
