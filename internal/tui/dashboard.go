package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	dashboardRefresh = 2 * time.Second
	recentSignals    = 9
)

// Dashboard message types.
type snapshotMsg domain.TriangleSnapshot
type snapshotErrMsg struct{ err error }
type signalsMsg []domain.ArbitrageSignal
type signalsErrMsg struct{ err error }
type dashTickMsg time.Time

// DashboardModel shows the live legs, rate and regime plus the latest
// detections.
type DashboardModel struct {
	services Services
	snapshot domain.TriangleSnapshot
	signals  []domain.ArbitrageSignal
	loading  bool
	err      error
	now      func() time.Time
	width    int
	height   int
}

func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services: svc,
		snapshot: domain.TriangleSnapshot{Triangle: svc.Triangle, Regime: domain.RegimeUnknown},
		loading:  true,
		now:      time.Now,
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchSnapshotCmd(),
		m.fetchSignalsCmd(),
		m.tickCmd(),
	)
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snapshot = domain.TriangleSnapshot(msg)
		m.loading = false
		m.err = nil
		return m, nil

	case snapshotErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case signalsMsg:
		m.signals = []domain.ArbitrageSignal(msg)
		return m, nil

	case signalsErrMsg:
		// History is optional without a database.
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchSnapshotCmd(),
			m.fetchSignalsCmd(),
			m.tickCmd(),
		)

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Refresh) {
			return m, tea.Batch(m.fetchSnapshotCmd(), m.fetchSignalsCmd())
		}
	}

	return m, nil
}

func (m DashboardModel) View() string {
	if m.loading {
		return SubtextStyle.Render("Loading triangle...")
	}

	legBox := BorderStyle.Width(m.leftWidth()).Render(m.renderLegs())
	rateBox := BorderStyle.Width(m.rightWidth()).Render(m.renderRate())
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, legBox, rateBox)

	sections := []string{topRow}
	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	}
	signalBox := BorderStyle.Width(max(m.width-2, 40)).Render(m.renderSignals())
	sections = append(sections, signalBox)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Snapshot returns the last loaded snapshot (for testing).
func (m DashboardModel) Snapshot() domain.TriangleSnapshot { return m.snapshot }

// Signals returns the recent signals (for testing).
func (m DashboardModel) Signals() []domain.ArbitrageSignal { return m.signals }

func (m DashboardModel) leftWidth() int {
	return max(m.width/2-2, 30)
}

func (m DashboardModel) rightWidth() int {
	return max(m.width-m.leftWidth()-4, 30)
}

func (m DashboardModel) renderLegs() string {
	lines := []string{
		HeaderStyle.Render("  Legs " + m.snapshot.Triangle.String()),
		SubtextStyle.Render("  Symbol              Bid"),
		SubtextStyle.Render("  " + strings.Repeat("─", 26)),
	}
	for _, leg := range m.snapshot.Triangle.Legs() {
		lines = append(lines, "  "+FormatLeg(leg, m.snapshot.Bids))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderRate() string {
	snap := m.snapshot
	gaugeWidth := max(m.rightWidth()-16, 10)
	lines := []string{
		HeaderStyle.Render("  Triangle rate"),
		fmt.Sprintf("  Rate       %s", formatRate(snap.Rate)),
		fmt.Sprintf("  Regime     %s", RenderRegime(snap.Regime)),
		fmt.Sprintf("  Threshold  %s", formatRate(snap.Threshold)),
		"  " + RenderDeviationGauge(snap.Rate, snap.Threshold, gaugeWidth),
		SubtextStyle.Render("  Updated " + formatAge(m.now(), snap.UpdatedAt)),
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderSignals() string {
	lines := []string{HeaderStyle.Render("  Recent signals")}
	count := min(len(m.signals), recentSignals)
	for i := 0; i < count; i++ {
		lines = append(lines, "  "+FormatSignal(m.signals[i]))
	}
	if len(m.signals) == 0 {
		lines = append(lines, SubtextStyle.Render("  No signals yet"))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchSnapshotCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Snapshots == nil {
			return snapshotErrMsg{err: errors.New("triangle service not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), dashboardRefresh)
		defer cancel()
		snap, err := m.services.Snapshots.LatestSnapshot(ctx)
		if err != nil {
			return snapshotErrMsg{err: err}
		}
		return snapshotMsg(snap)
	}
}

func (m DashboardModel) fetchSignalsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Signals == nil {
			return signalsErrMsg{err: errors.New("signal history not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), dashboardRefresh)
		defer cancel()
		signals, err := m.services.Signals.ListSignals(ctx, domain.SignalFilter{Limit: recentSignals})
		if err != nil {
			return signalsErrMsg{err: err}
		}
		return signalsMsg(signals)
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
