package tui

import (
	"context"
	"strings"
	"testing"

	"fx-triangle-watch/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

// --- stub services ---

type stubSnapshotQuerier struct {
	snapshot domain.TriangleSnapshot
	err      error
}

func (s *stubSnapshotQuerier) LatestSnapshot(ctx context.Context) (domain.TriangleSnapshot, error) {
	return s.snapshot, s.err
}

type stubSignalQuerier struct {
	signals []domain.ArbitrageSignal
	err     error
	last    domain.SignalFilter
}

func (s *stubSignalQuerier) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error) {
	s.last = filter
	return s.signals, s.err
}

var testTriangle = domain.Triangle{LegA: "EURUSD", LegB: "EURGBP", LegC: "GBPUSD"}

func testServices() Services {
	return Services{
		Snapshots: &stubSnapshotQuerier{snapshot: domain.TriangleSnapshot{Triangle: testTriangle}},
		Signals:   &stubSignalQuerier{},
		Triangle:  testTriangle,
		Username:  "testuser",
	}
}

func TestAppModelInitialTab(t *testing.T) {
	m := NewAppModel(testServices())
	if m.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard, got %d", m.ActiveTab())
	}
}

func TestAppModelTabSwitchByNumber(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	app := updated.(AppModel)
	if app.ActiveTab() != TabSignals {
		t.Fatalf("expected TabSignals after pressing 2, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}})
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after pressing 1, got %d", app.ActiveTab())
	}
}

func TestAppModelTabSwitchByTab(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	app := updated.(AppModel)
	if app.ActiveTab() != TabSignals {
		t.Fatalf("expected TabSignals after Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after Shift+Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabSignals {
		t.Fatalf("expected Shift+Tab to wrap to TabSignals, got %d", app.ActiveTab())
	}
}

func TestAppModelRoutesDataToOwningScreen(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	snap := domain.TriangleSnapshot{Triangle: testTriangle, Rate: 1.0002, Regime: domain.RegimeAbove}
	updated, _ := m.Update(snapshotMsg(snap))
	app := updated.(AppModel)
	if app.dashboard.Snapshot().Rate != 1.0002 {
		t.Fatalf("dashboard should receive snapshot while active, got %+v", app.dashboard.Snapshot())
	}

	updated, _ = app.Update(filteredSignalsMsg([]domain.ArbitrageSignal{{ID: 1}}))
	app = updated.(AppModel)
	if app.signals.SignalCount() != 1 {
		t.Fatal("explorer should receive its data even when inactive")
	}
}

func TestAppModelQuit(t *testing.T) {
	m := NewAppModel(testServices())
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if updated.View() != "Goodbye!\n" {
		t.Fatalf("unexpected quit view %q", updated.View())
	}
}

func TestAppModelWindowResize(t *testing.T) {
	m := NewAppModel(testServices())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	app := updated.(AppModel)
	if app.width != 100 || app.height != 50 {
		t.Fatalf("expected 100x50, got %dx%d", app.width, app.height)
	}
}

func TestAppModelViewRendersWithoutPanic(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	for _, tab := range []Tab{TabDashboard, TabSignals} {
		m.activeTab = tab
		if m.View() == "" {
			t.Fatalf("expected non-empty view for tab %d", tab)
		}
	}
}

func TestAppModelHelpToggle(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)
	if m.ShowingFullHelp() {
		t.Fatal("expected short help by default")
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	app := updated.(AppModel)
	if cmd != nil {
		t.Fatal("help toggle should not emit a command")
	}
	if !app.ShowingFullHelp() {
		t.Fatal("expected full help after ?")
	}
	if !strings.Contains(app.View(), "prev tab") {
		t.Fatalf("expected full key list in view:\n%s", app.View())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if updated.(AppModel).ShowingFullHelp() {
		t.Fatal("expected short help after second ?")
	}
}

func TestAppModelTabBarShowsTriangleAndUser(t *testing.T) {
	m := NewAppModel(testServices())
	m.SetSize(120, 40)

	bar := m.renderTabBar()
	for _, want := range []string{"1:Dashboard", "2:Signals", testTriangle.String(), "testuser"} {
		if !strings.Contains(bar, want) {
			t.Fatalf("expected %q in tab bar %q", want, bar)
		}
	}
}

func TestAppModelIgnoresOutOfRangeDigit(t *testing.T) {
	m := NewAppModel(testServices())
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}})
	if updated.(AppModel).ActiveTab() != TabDashboard {
		t.Fatal("digit beyond tab count should not switch tabs")
	}
}
