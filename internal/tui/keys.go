package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap implements help.KeyMap so the footer lists the active bindings.
type KeyMap struct {
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding

	FilterInstrument key.Binding
	FilterDirection  key.Binding
	ScrollUp         key.Binding
	ScrollDown       key.Binding
}

var DefaultKeyMap = KeyMap{
	NextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	PrevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Refresh: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	FilterInstrument: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "leg filter")),
	FilterDirection:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "direction filter")),
	ScrollUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "scroll up")),
	ScrollDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "scroll down")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Refresh},
		{k.FilterInstrument, k.FilterDirection, k.ScrollUp, k.ScrollDown},
		{k.Help, k.Quit},
	}
}
