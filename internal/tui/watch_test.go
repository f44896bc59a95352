package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/automatonhq/sidecar/internal/tierview"
	"github.com/automatonhq/sidecar/internal/views"
)

func TestUpdate_TierOverrideKeys(t *testing.T) {
	m := NewModel(nil)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'4'}})
	m = updated.(Model)
	if m.override == nil || *m.override != 4 {
		t.Fatalf("override = %v, want 4", m.override)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	m = updated.(Model)
	if m.override != nil {
		t.Fatalf("override = %v, want cleared", m.override)
	}
}

func TestUpdate_QuitKey(t *testing.T) {
	m := NewModel(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if msg := cmd(); msg == nil {
		t.Fatalf("expected quit message")
	}
}

func TestRenderVitals(t *testing.T) {
	status := views.Status{
		AgentState:   "running",
		SurvivalTier: "normal",
		CreditsCents: 247,
		USDCBalance:  1.5,
		TurnCount:    12,
	}
	out := renderVitals(status, tierview.Project(status, nil))
	if !strings.Contains(out, "$2.47") {
		t.Fatalf("vitals missing credits: %q", out)
	}
	if !strings.Contains(out, "running") {
		t.Fatalf("vitals missing state: %q", out)
	}
}

func TestRenderTurns_TruncatesLongSummaries(t *testing.T) {
	long := strings.Repeat("a", 120)
	out := renderTurns([]views.Turn{{TurnNumber: 3, Summary: long}})
	if strings.Contains(out, long) {
		t.Fatalf("summary should be truncated")
	}
	if !strings.Contains(out, "...") {
		t.Fatalf("truncated summary should carry ellipsis: %q", out)
	}
}

func TestRenderTransactions_SignByType(t *testing.T) {
	out := renderTransactions([]views.Transaction{
		{Type: "earned", AmountCents: 300},
		{Type: "spent", AmountCents: 120},
	})
	if !strings.Contains(out, "+$3.00") || !strings.Contains(out, "-$1.20") {
		t.Fatalf("transaction signs wrong: %q", out)
	}
}
