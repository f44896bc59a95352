// Package tierview derives the single authoritative tier and agent state
// consumed by presentation code, reconciling live telemetry with an
// optional manual override. The override is purely local: it is never
// persisted and never sent upstream.
package tierview

import "github.com/automatonhq/sidecar/internal/views"

// Tiers is the ordered survival tier list; override values index into it.
var Tiers = []string{"normal", "low_compute", "critical", "sleeping", "dead"}

// Projection is the effective tier and agent state after reconciliation.
type Projection struct {
	Tier       string
	AgentState string
}

// Project applies an optional override index to the live status. Overriding
// to sleeping or dead also forces the matching terminal agent state, since
// a live "running" label under a dead tier would be contradictory; all
// other overrides keep the live agent state.
func Project(status views.Status, override *int) Projection {
	out := Projection{
		Tier:       status.SurvivalTier,
		AgentState: status.AgentState,
	}
	if override == nil || *override < 0 || *override >= len(Tiers) {
		return out
	}
	out.Tier = Tiers[*override]
	switch out.Tier {
	case "sleeping":
		out.AgentState = "sleeping"
	case "dead":
		out.AgentState = "dead"
	}
	return out
}
