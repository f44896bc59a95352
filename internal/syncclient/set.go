package syncclient

import (
	"context"

	"github.com/automatonhq/sidecar/internal/catalog"
	"github.com/automatonhq/sidecar/internal/views"
)

// Set bundles one poller per telemetry endpoint with the speed classes the
// dashboard uses: vitals are fast, history and aggregates are slow.
type Set struct {
	Status       *Poller[views.Status]
	Turns        *Poller[[]views.Turn]
	Transactions *Poller[[]views.Transaction]
	Heartbeat    *Poller[views.Heartbeat]
	Children     *Poller[[]views.Child]
	Stats        *Poller[catalog.Stats]
}

// placeholderStatus is what consumers see when the service was never
// reachable. It reads as an unknown-but-alive agent rather than an empty
// screen.
func placeholderStatus() views.Status {
	return views.Status{
		AgentState:   "unknown",
		SurvivalTier: "normal",
		Name:         "automaton",
		Address:      "0x0000000000000000000000000000000000000000",
	}
}

func NewSet(baseURL string) *Set {
	return &Set{
		Status:       NewPoller(baseURL, "/api/status", SpeedFast, placeholderStatus()),
		Turns:        NewPoller(baseURL, "/api/turns", SpeedSlow, []views.Turn{}),
		Transactions: NewPoller(baseURL, "/api/transactions", SpeedSlow, []views.Transaction{}),
		Heartbeat:    NewPoller(baseURL, "/api/heartbeat", SpeedSlow, views.Heartbeat{ScheduledTasks: []views.ScheduledTask{}}),
		Children:     NewPoller(baseURL, "/api/children", SpeedSlow, []views.Child{}),
		Stats:        NewPoller(baseURL, "/api/marketplace/stats", SpeedSlow, catalog.Stats{Skills: []catalog.Skill{}}),
	}
}

// Start activates every poller at the given tier.
func (s *Set) Start(ctx context.Context, tier string) {
	s.Status.Start(ctx, tier)
	s.Turns.Start(ctx, tier)
	s.Transactions.Start(ctx, tier)
	s.Heartbeat.Start(ctx, tier)
	s.Children.Start(ctx, tier)
	s.Stats.Start(ctx, tier)
}

// Retier restarts every poller at the new tier's cadence.
func (s *Set) Retier(tier string) {
	s.Status.Retier(tier)
	s.Turns.Retier(tier)
	s.Transactions.Retier(tier)
	s.Heartbeat.Retier(tier)
	s.Children.Retier(tier)
	s.Stats.Retier(tier)
}

// Stop halts every poller.
func (s *Set) Stop() {
	s.Status.Stop()
	s.Turns.Stop()
	s.Transactions.Stop()
	s.Heartbeat.Stop()
	s.Children.Stop()
	s.Stats.Stop()
}
