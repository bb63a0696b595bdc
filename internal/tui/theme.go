package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1F6FEB"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Signal direction colors
	DirectionUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D26A")).Bold(true)
	DirectionDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")).Bold(true)

	// Regime colors
	RegimeInsideStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	RegimeAboveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")).Bold(true)
	RegimeBelowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922")).Bold(true)
	RegimeUnknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")).Italic(true)

	// General styles
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	BorderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))

	// Deviation gauge colors
	GaugeCalmStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D26A"))
	GaugeWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	GaugeTriggerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
)
