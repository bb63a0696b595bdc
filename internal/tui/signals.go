package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fx-triangle-watch/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	explorerLimit = 200
	// title, blank line, filter chips, rule and column header above the list
	explorerHeaderRows = 5
	explorerFooterRows = 1
)

type filteredSignalsMsg []domain.ArbitrageSignal
type filteredSignalsErrMsg struct{ err error }

var directionOptions = []string{"ALL", string(domain.DirectionUp), string(domain.DirectionDown)}

// SignalExplorerModel browses persisted signals by leg and direction. The
// list scrolls inside a viewport sized to whatever the filters leave over.
type SignalExplorerModel struct {
	services Services
	legs     []string
	leg      int
	dir      int
	signals  []domain.ArbitrageSignal
	list     viewport.Model
	loading  bool
	err      error
	width    int
}

func NewSignalExplorerModel(svc Services) SignalExplorerModel {
	list := viewport.New(0, 0)
	list.KeyMap = viewport.KeyMap{Up: DefaultKeyMap.ScrollUp, Down: DefaultKeyMap.ScrollDown}
	return SignalExplorerModel{
		services: svc,
		legs:     append([]string{"ALL"}, svc.Triangle.Legs()...),
		list:     list,
		loading:  true,
	}
}

func (m SignalExplorerModel) Init() tea.Cmd {
	return m.fetchSignalsCmd()
}

func (m SignalExplorerModel) Update(msg tea.Msg) (SignalExplorerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case filteredSignalsMsg:
		m.signals = []domain.ArbitrageSignal(msg)
		m.loading = false
		m.err = nil
		m.list.SetContent(m.renderRows())
		m.list.GotoTop()
		return m, nil

	case filteredSignalsErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.FilterInstrument):
			m.leg = (m.leg + 1) % len(m.legs)
			return m.reload()
		case key.Matches(msg, DefaultKeyMap.FilterDirection):
			m.dir = (m.dir + 1) % len(directionOptions)
			return m.reload()
		case key.Matches(msg, DefaultKeyMap.Refresh):
			return m.reload()
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m SignalExplorerModel) reload() (SignalExplorerModel, tea.Cmd) {
	m.loading = true
	return m, m.fetchSignalsCmd()
}

func (m SignalExplorerModel) View() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("  Signal Explorer") + "\n\n")
	b.WriteString(m.renderFilters() + "\n")
	b.WriteString(SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 10))) + "\n")

	switch {
	case m.loading:
		b.WriteString(SubtextStyle.Render("  Loading..."))
	case m.err != nil:
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case len(m.signals) == 0:
		b.WriteString(SubtextStyle.Render("  No signals match the current filters"))
	default:
		b.WriteString(SubtextStyle.Render(fmt.Sprintf("  %-6s %-10s %-4s %9s  %-13s %-8s  %s",
			"ID", "Instrument", "Dir", "Magnitude", "Rate", "Time", "Valid")) + "\n")
		b.WriteString(m.list.View() + "\n")
		b.WriteString(SubtextStyle.Render(fmt.Sprintf("  %d signals, %3.0f%%", len(m.signals), m.list.ScrollPercent()*100)))
	}
	return b.String()
}

func (m *SignalExplorerModel) SetSize(w, h int) {
	m.width = w
	m.list.Width = w
	m.list.Height = max(h-explorerHeaderRows-explorerFooterRows, 3)
}

// FilterState returns the selected leg and direction indices.
func (m SignalExplorerModel) FilterState() (leg, direction int) {
	return m.leg, m.dir
}

func (m SignalExplorerModel) SignalCount() int { return len(m.signals) }

// ScrollOffset is the index of the first visible signal.
func (m SignalExplorerModel) ScrollOffset() int { return m.list.YOffset }

func (m SignalExplorerModel) renderRows() string {
	rows := make([]string, len(m.signals))
	for i, s := range m.signals {
		rows[i] = "  " + FormatSignal(s)
	}
	return strings.Join(rows, "\n")
}

func (m SignalExplorerModel) renderFilters() string {
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top,
		renderChip("Instrument", m.legs, m.leg), "  ",
		renderChip("Direction", directionOptions, m.dir))
}

func renderChip(label string, options []string, active int) string {
	parts := []string{SubtextStyle.Render(label + ": ")}
	for i, opt := range options {
		style := SubtextStyle
		if i == active {
			style = ActiveTabStyle
		}
		parts = append(parts, style.Render(strings.ToUpper(opt)), " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m SignalExplorerModel) buildFilter() domain.SignalFilter {
	filter := domain.SignalFilter{Limit: explorerLimit}
	if m.leg > 0 {
		filter.InstrumentID = m.legs[m.leg]
	}
	if m.dir > 0 {
		filter.Direction = domain.Direction(directionOptions[m.dir])
	}
	return filter
}

func (m SignalExplorerModel) fetchSignalsCmd() tea.Cmd {
	querier := m.services.Signals
	filter := m.buildFilter()
	return func() tea.Msg {
		if querier == nil {
			return filteredSignalsErrMsg{err: errors.New("signal history not available")}
		}
		signals, err := querier.ListSignals(context.Background(), filter)
		if err != nil {
			return filteredSignalsErrMsg{err: err}
		}
		return filteredSignalsMsg(signals)
	}
}
