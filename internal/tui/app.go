package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Tab int

const (
	TabDashboard Tab = iota
	TabSignals
	tabCount
)

func (t Tab) title() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabSignals:
		return "Signals"
	default:
		return "?"
	}
}

// chrome is the height taken by the tab bar and the help footer.
const chrome = 3

// AppModel routes data messages to the screen that requested them and key
// presses to the visible screen.
type AppModel struct {
	services  Services
	activeTab Tab
	dashboard DashboardModel
	signals   SignalExplorerModel
	help      help.Model
	width     int
	height    int
	quitting  bool
}

func NewAppModel(svc Services) AppModel {
	return AppModel{
		services:  svc,
		activeTab: TabDashboard,
		dashboard: NewDashboardModel(svc),
		signals:   NewSignalExplorerModel(svc),
		help:      help.New(),
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.dashboard.Init(), m.signals.Init())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.handleGlobalKey(msg) {
			if m.quitting {
				return m, tea.Quit
			}
			return m, nil
		}
		switch m.activeTab {
		case TabDashboard:
			m.dashboard, cmd = m.dashboard.Update(msg)
		case TabSignals:
			m.signals, cmd = m.signals.Update(msg)
		}

	case snapshotMsg, snapshotErrMsg, signalsMsg, signalsErrMsg, dashTickMsg:
		m.dashboard, cmd = m.dashboard.Update(msg)

	case filteredSignalsMsg, filteredSignalsErrMsg:
		m.signals, cmd = m.signals.Update(msg)
	}
	return m, cmd
}

// handleGlobalKey reports whether msg was consumed by the root model.
func (m *AppModel) handleGlobalKey(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, DefaultKeyMap.Quit):
		m.quitting = true
	case key.Matches(msg, DefaultKeyMap.NextTab):
		m.activeTab = (m.activeTab + 1) % tabCount
	case key.Matches(msg, DefaultKeyMap.PrevTab):
		m.activeTab = (m.activeTab + tabCount - 1) % tabCount
	case key.Matches(msg, DefaultKeyMap.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		n, err := strconv.Atoi(msg.String())
		if err != nil || n < 1 || n > int(tabCount) {
			return false
		}
		m.activeTab = Tab(n - 1)
	}
	return true
}

func (m AppModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var content string
	switch m.activeTab {
	case TabDashboard:
		content = m.dashboard.View()
	case TabSignals:
		content = m.signals.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabBar(), content, m.help.View(DefaultKeyMap))
}

func (m *AppModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.help.Width = w
	m.dashboard.SetSize(w, h-chrome)
	m.signals.SetSize(w, h-chrome)
}

func (m AppModel) ActiveTab() Tab { return m.activeTab }

// ShowingFullHelp reports whether the expanded key list is visible.
func (m AppModel) ShowingFullHelp() bool { return m.help.ShowAll }

func (m AppModel) renderTabBar() string {
	parts := make([]string, 0, int(tabCount)+1)
	for t := Tab(0); t < tabCount; t++ {
		label := strconv.Itoa(int(t)+1) + ":" + t.title()
		if t == m.activeTab {
			parts = append(parts, ActiveTabStyle.Render(label))
		} else {
			parts = append(parts, InactiveTabStyle.Render(label))
		}
	}

	status := m.services.Triangle.String()
	if m.services.Username != "" {
		status += "  " + m.services.Username
	}
	parts = append(parts, SubtextStyle.Render("  "+status))
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}
