package views

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// The decode helpers implement the decode-or-default rule: a missing key,
// unparseable document, or absent field yields the caller's default and the
// view carries on. The second return reports whether any default fired, so
// the reconciler can count occurrences.

type creditCheck struct {
	Credits *float64 `json:"credits"`
	Tier    *string  `json:"tier"`
}

func decodeCreditCheck(raw string) (credits int64, tier string, defaulted bool) {
	credits, tier = 0, "normal"
	if raw == "" {
		return credits, tier, true
	}
	var v creditCheck
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return credits, tier, true
	}
	if v.Credits != nil {
		credits = int64(*v.Credits)
	} else {
		defaulted = true
	}
	if v.Tier != nil {
		tier = *v.Tier
	} else {
		defaulted = true
	}
	return credits, tier, defaulted
}

func decodeUSDCBalance(raw string) (float64, bool) {
	if raw == "" {
		return 0, true
	}
	var v struct {
		Balance *float64 `json:"balance"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil || v.Balance == nil {
		return 0, true
	}
	return *v.Balance, false
}

func decodeHeartbeatPing(raw string) (string, bool) {
	if raw == "" {
		return "", true
	}
	var v struct {
		Timestamp *string `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil || v.Timestamp == nil {
		return "", true
	}
	return *v.Timestamp, false
}

// decodeToolCalls parses a turn's embedded tool_calls blob. Producers have
// written two field spellings over time (name|tool, duration_ms|durationMs);
// both are accepted, with "unknown"/0 for anything else.
func decodeToolCalls(blob string) ([]ToolCall, bool) {
	out := []ToolCall{}
	if blob == "" {
		return out, false
	}
	var raw []struct {
		Name       *string  `json:"name"`
		Tool       *string  `json:"tool"`
		DurationMs *float64 `json:"duration_ms"`
		DurationMS *float64 `json:"durationMs"`
	}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return out, true
	}
	for _, tc := range raw {
		call := ToolCall{Name: "unknown"}
		if tc.Name != nil {
			call.Name = *tc.Name
		} else if tc.Tool != nil {
			call.Name = *tc.Tool
		}
		if tc.DurationMs != nil {
			call.DurationMs = int64(*tc.DurationMs)
		} else if tc.DurationMS != nil {
			call.DurationMs = int64(*tc.DurationMS)
		}
		out = append(out, call)
	}
	return out, false
}

// countDefault records a decode fallback against the named source field.
func (r *Reconciler) countDefault(ctx context.Context, field string) {
	if r.metrics == nil {
		return
	}
	r.metrics.DecodeDefaults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("sidecar.field", field)))
}
