package tierview

import (
	"testing"

	"github.com/automatonhq/sidecar/internal/views"
)

func idx(i int) *int { return &i }

func TestProject_NoOverridePassesLiveData(t *testing.T) {
	got := Project(views.Status{SurvivalTier: "critical", AgentState: "running"}, nil)
	if got.Tier != "critical" || got.AgentState != "running" {
		t.Fatalf("Project = %+v, want live data", got)
	}
}

func TestProject_OverrideTable(t *testing.T) {
	live := views.Status{SurvivalTier: "normal", AgentState: "running"}
	cases := []struct {
		override  int
		wantTier  string
		wantState string
	}{
		{0, "normal", "running"},
		{1, "low_compute", "running"},
		{2, "critical", "running"},
		{3, "sleeping", "sleeping"},
		{4, "dead", "dead"},
	}
	for _, tc := range cases {
		got := Project(live, idx(tc.override))
		if got.Tier != tc.wantTier || got.AgentState != tc.wantState {
			t.Fatalf("Project(override=%d) = %+v, want %s/%s", tc.override, got, tc.wantTier, tc.wantState)
		}
	}
}

func TestProject_OutOfRangeOverrideIgnored(t *testing.T) {
	live := views.Status{SurvivalTier: "sleeping", AgentState: "sleeping"}
	for _, i := range []int{-1, 5, 100} {
		got := Project(live, idx(i))
		if got.Tier != "sleeping" || got.AgentState != "sleeping" {
			t.Fatalf("Project(override=%d) = %+v, want live data", i, got)
		}
	}
}
