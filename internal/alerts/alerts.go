// Package alerts watches the polled agent status and notifies the operator
// over Telegram when the agent degrades. It is a pure consumer of the sync
// client: the telemetry service itself never pushes anything.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/automatonhq/sidecar/internal/config"
	"github.com/automatonhq/sidecar/internal/syncclient"
	"github.com/automatonhq/sidecar/internal/views"
)

// sampleInterval controls how often the notifier re-reads the status
// snapshot. Transitions shorter than this may be missed; the concern here
// is degradation, which is not transient.
const sampleInterval = 10 * time.Second

// alertTiers are the survival tiers worth waking an operator for.
var alertTiers = map[string]bool{
	"critical": true,
	"dead":     true,
}

// StatusSource is the slice of the sync client the notifier needs.
type StatusSource interface {
	Snapshot() syncclient.Snapshot[views.Status]
}

// Notifier sends tier-degradation and connectivity alerts.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	log     *slog.Logger
	send    func(text string)

	mu           sync.Mutex
	lastTier     string
	disconnected bool
	seeded       bool
}

// New builds a Notifier, or returns nil when alerts are not configured.
func New(cfg config.AlertsConfig, log *slog.Logger) (*Notifier, error) {
	if cfg.TelegramToken == "" || len(cfg.ChatIDs) == 0 {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	log.Info("alert notifier started", "user", bot.Self.UserName, "chats", len(cfg.ChatIDs))
	n := &Notifier{
		bot:     bot,
		chatIDs: cfg.ChatIDs,
		log:     log,
	}
	n.send = n.sendTelegram
	return n, nil
}

// Run samples the status source until the context ends. Safe to call on a
// nil Notifier; it just blocks until cancellation so callers need no
// conditional wiring.
func (n *Notifier) Run(ctx context.Context, source StatusSource) {
	if n == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := source.Snapshot()
			if !snap.Initialized {
				continue
			}
			n.Observe(snap.Data, snap.Connected)
		}
	}
}

// Observe inspects one status sample and fires alerts on transitions: a
// tier entering critical/dead, connectivity dropping, and recovery of
// either. The first sample only seeds state so a restart next to an
// already-critical agent does not re-alert.
func (n *Notifier) Observe(status views.Status, connected bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.seeded {
		n.seeded = true
		n.lastTier = status.SurvivalTier
		n.disconnected = !connected
		return
	}

	if !connected && !n.disconnected {
		n.disconnected = true
		n.send(fmt.Sprintf("⚠️ %s: telemetry unreachable, showing last known state", status.Name))
	}
	if connected && n.disconnected {
		n.disconnected = false
		n.send(fmt.Sprintf("✅ %s: telemetry reachable again (tier %s)", status.Name, status.SurvivalTier))
	}

	// Tier transitions only mean something while connected; a stale
	// snapshot repeats the old tier.
	if connected && status.SurvivalTier != n.lastTier {
		from := n.lastTier
		n.lastTier = status.SurvivalTier
		switch {
		case alertTiers[status.SurvivalTier]:
			n.send(fmt.Sprintf("🚨 %s degraded: %s → %s (credits $%.2f)",
				status.Name, from, status.SurvivalTier, float64(status.CreditsCents)/100))
		case alertTiers[from]:
			n.send(fmt.Sprintf("✅ %s recovered: %s → %s", status.Name, from, status.SurvivalTier))
		}
	}
}

func (n *Notifier) sendTelegram(text string) {
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.log.Warn("alert send failed", "chat_id", chatID, "error", err)
		}
	}
}
