package alerts

import (
	"strings"
	"testing"

	"github.com/automatonhq/sidecar/internal/config"
	"github.com/automatonhq/sidecar/internal/views"
)

func newTestNotifier() (*Notifier, *[]string) {
	var sent []string
	n := &Notifier{chatIDs: []int64{1}}
	n.send = func(text string) { sent = append(sent, text) }
	return n, &sent
}

func status(tier string) views.Status {
	return views.Status{Name: "conway", SurvivalTier: tier, AgentState: "running", CreditsCents: 120}
}

func TestObserve_FirstSampleOnlySeeds(t *testing.T) {
	n, sent := newTestNotifier()
	n.Observe(status("critical"), true)
	if len(*sent) != 0 {
		t.Fatalf("seed sample should not alert, sent %v", *sent)
	}
}

func TestObserve_DegradationAlert(t *testing.T) {
	n, sent := newTestNotifier()
	n.Observe(status("normal"), true)
	n.Observe(status("critical"), true)
	if len(*sent) != 1 || !strings.Contains((*sent)[0], "degraded: normal → critical") {
		t.Fatalf("sent = %v", *sent)
	}
	// Repeated samples at the same tier stay quiet.
	n.Observe(status("critical"), true)
	if len(*sent) != 1 {
		t.Fatalf("duplicate alert: %v", *sent)
	}
}

func TestObserve_RecoveryAlert(t *testing.T) {
	n, sent := newTestNotifier()
	n.Observe(status("dead"), true)
	n.Observe(status("normal"), true)
	if len(*sent) != 1 || !strings.Contains((*sent)[0], "recovered: dead → normal") {
		t.Fatalf("sent = %v", *sent)
	}
}

func TestObserve_BenignTransitionIsQuiet(t *testing.T) {
	n, sent := newTestNotifier()
	n.Observe(status("normal"), true)
	n.Observe(status("low_compute"), true)
	if len(*sent) != 0 {
		t.Fatalf("normal→low_compute should not alert, sent %v", *sent)
	}
}

func TestObserve_ConnectivityTransitions(t *testing.T) {
	n, sent := newTestNotifier()
	n.Observe(status("normal"), true)
	n.Observe(status("normal"), false)
	n.Observe(status("normal"), false)
	n.Observe(status("normal"), true)
	if len(*sent) != 2 {
		t.Fatalf("want unreachable + reachable alerts, sent %v", *sent)
	}
	if !strings.Contains((*sent)[0], "unreachable") || !strings.Contains((*sent)[1], "reachable again") {
		t.Fatalf("sent = %v", *sent)
	}
}

func TestObserve_StaleTierWhileDisconnectedIgnored(t *testing.T) {
	n, sent := newTestNotifier()
	n.Observe(status("normal"), true)
	// Disconnected snapshots keep the last known-good payload; a tier
	// "change" seen while disconnected is not trusted.
	n.Observe(status("dead"), false)
	for _, msg := range *sent {
		if strings.Contains(msg, "degraded") {
			t.Fatalf("alerted on stale tier: %v", *sent)
		}
	}
}

func TestNew_DisabledWithoutConfig(t *testing.T) {
	n, err := New(config.AlertsConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n != nil {
		t.Fatalf("expected nil notifier without token")
	}
}
