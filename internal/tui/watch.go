// Package tui renders the live watch dashboard in the terminal. It is a
// read-only consumer of the sync client; keyboard tier overrides only
// change what is displayed, never what is polled or persisted.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/automatonhq/sidecar/internal/catalog"
	"github.com/automatonhq/sidecar/internal/syncclient"
	"github.com/automatonhq/sidecar/internal/tierview"
	"github.com/automatonhq/sidecar/internal/views"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dangerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var tierStyles = map[string]lipgloss.Style{
	"normal":      okStyle,
	"low_compute": warnStyle,
	"critical":    dangerStyle,
	"sleeping":    dimStyle,
	"dead":        dangerStyle,
}

type tickMsg time.Time

type Model struct {
	set      *syncclient.Set
	override *int
	liveTier string
	width    int
}

func NewModel(set *syncclient.Set) Model {
	return Model{set: set, liveTier: "normal", width: 100}
}

// Run starts the pollers and drives the dashboard until the user quits.
func Run(ctx context.Context, set *syncclient.Set) error {
	set.Start(ctx, "normal")
	defer set.Stop()

	p := tea.NewProgram(NewModel(set), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		// The live tier drives poll cadence; the override never does.
		snap := m.set.Status.Snapshot()
		if snap.Initialized && snap.Connected && snap.Data.SurvivalTier != m.liveTier {
			m.liveTier = snap.Data.SurvivalTier
			m.set.Retier(m.liveTier)
		}
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "0", "1", "2", "3", "4":
			i := int(msg.String()[0] - '0')
			m.override = &i
			return m, nil
		case "o", "esc":
			m.override = nil
			return m, nil
		}
	}
	return m, nil
}

func (m Model) View() string {
	status := m.set.Status.Snapshot()
	proj := tierview.Project(status.Data, m.override)

	var b strings.Builder
	b.WriteString(renderHeader(status, proj, m.override != nil))
	b.WriteString("\n")
	left := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(renderVitals(status.Data, proj)),
		panelStyle.Render(renderHeartbeat(m.set.Heartbeat.Snapshot().Data)),
		panelStyle.Render(renderChildren(m.set.Children.Snapshot().Data)),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(renderTurns(m.set.Turns.Snapshot().Data)),
		panelStyle.Render(renderTransactions(m.set.Transactions.Snapshot().Data)),
		panelStyle.Render(renderStats(m.set.Stats.Snapshot())),
	)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q quit · 0-4 preview tier · o live"))
	return b.String()
}

func renderHeader(status syncclient.Snapshot[views.Status], proj tierview.Projection, overridden bool) string {
	conn := okStyle.Render("● connected")
	if !status.Connected {
		conn = dangerStyle.Render("● offline")
		if !status.Initialized {
			conn = dimStyle.Render("● connecting")
		}
	}
	name := status.Data.Name
	if name == "" {
		name = "automaton"
	}
	tier := tierBadge(proj.Tier)
	if overridden {
		tier += dimStyle.Render(" (preview)")
	}
	return fmt.Sprintf("%s  %s  %s", titleStyle.Render(name), tier, conn)
}

func tierBadge(tier string) string {
	style, ok := tierStyles[tier]
	if !ok {
		style = dimStyle
	}
	return style.Render(strings.ToUpper(tier))
}

func renderVitals(s views.Status, proj tierview.Projection) string {
	lines := []string{
		titleStyle.Render("Vitals"),
		fmt.Sprintf("state    %s", proj.AgentState),
		fmt.Sprintf("credits  $%.2f", float64(s.CreditsCents)/100),
		fmt.Sprintf("usdc     %.6f", s.USDCBalance),
		fmt.Sprintf("turns    %d", s.TurnCount),
	}
	if s.UptimeSince != "" {
		lines = append(lines, dimStyle.Render("since    "+s.UptimeSince))
	}
	return strings.Join(lines, "\n")
}

func renderTurns(turns []views.Turn) string {
	lines := []string{titleStyle.Render("Recent turns")}
	if len(turns) == 0 {
		lines = append(lines, dimStyle.Render("no turns yet"))
	}
	for i, t := range turns {
		if i == 8 {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("… %d more", len(turns)-i)))
			break
		}
		summary := t.Summary
		if len(summary) > 60 {
			summary = summary[:57] + "..."
		}
		tools := ""
		if n := len(t.ToolCalls); n > 0 {
			tools = dimStyle.Render(fmt.Sprintf(" [%d tools]", n))
		}
		lines = append(lines, fmt.Sprintf("#%-4d %s%s", t.TurnNumber, summary, tools))
	}
	return strings.Join(lines, "\n")
}

func renderTransactions(txs []views.Transaction) string {
	lines := []string{titleStyle.Render("Transactions")}
	if len(txs) == 0 {
		lines = append(lines, dimStyle.Render("no transactions"))
	}
	for i, tx := range txs {
		if i == 6 {
			break
		}
		amount := fmt.Sprintf("$%.2f", float64(tx.AmountCents)/100)
		switch tx.Type {
		case "earned", "deposit":
			amount = okStyle.Render("+" + amount)
		default:
			amount = dangerStyle.Render("-" + amount)
		}
		lines = append(lines, fmt.Sprintf("%-10s %s %s", tx.Type, amount, dimStyle.Render(tx.Description)))
	}
	return strings.Join(lines, "\n")
}

func renderHeartbeat(hb views.Heartbeat) string {
	lines := []string{titleStyle.Render("Heartbeat")}
	if hb.LastPing != "" {
		lines = append(lines, dimStyle.Render("last ping "+hb.LastPing))
	}
	for _, task := range hb.ScheduledTasks {
		mark := okStyle.Render("●")
		if task.Status != "active" {
			mark = dimStyle.Render("○")
		}
		lines = append(lines, fmt.Sprintf("%s %-16s %s", mark, task.Name, dimStyle.Render(task.Cron)))
	}
	return strings.Join(lines, "\n")
}

func renderChildren(children []views.Child) string {
	lines := []string{titleStyle.Render("Children")}
	if len(children) == 0 {
		lines = append(lines, dimStyle.Render("none spawned"))
	}
	for _, c := range children {
		state := c.State
		if state == "running" {
			state = okStyle.Render(state)
		}
		lines = append(lines, fmt.Sprintf("%-12s %s $%.2f", c.Name, state, float64(c.CreditsCents)/100))
	}
	return strings.Join(lines, "\n")
}

func renderStats(snap syncclient.Snapshot[catalog.Stats]) string {
	lines := []string{titleStyle.Render("Marketplace")}
	s := snap.Data
	lines = append(lines,
		fmt.Sprintf("listed   %d", s.ListedCount),
		fmt.Sprintf("sales    %d", s.TotalSales),
		fmt.Sprintf("revenue  $%.2f", float64(s.TotalRevenueCents)/100),
	)
	if s.AverageRating > 0 {
		lines = append(lines, fmt.Sprintf("rating   %.1f", s.AverageRating))
	}
	return strings.Join(lines, "\n")
}
