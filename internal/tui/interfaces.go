package tui

import (
	"context"

	"fx-triangle-watch/internal/domain"
)

// SnapshotQuerier provides the live triangle state.
type SnapshotQuerier interface {
	LatestSnapshot(ctx context.Context) (domain.TriangleSnapshot, error)
}

// SignalQuerier provides signal history.
type SignalQuerier interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error)
}

// Services bundles the dependencies injected into one TUI session.
type Services struct {
	Snapshots SnapshotQuerier
	Signals   SignalQuerier
	Triangle  domain.Triangle
	Username  string
}
