package mcp

import (
	"context"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/service"
)

type TriangleReader interface {
	Triangle() domain.Triangle
	LatestSnapshot(ctx context.Context) (domain.TriangleSnapshot, error)
	ListRateSamples(ctx context.Context, limit int) ([]domain.RateSample, error)
}

type SignalReader interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error)
}

// TickIngester lets agents push quotes through the live pipeline.
type TickIngester interface {
	Ingest(ctx context.Context, tick domain.Tick) (service.Outcome, error)
}

// Backends groups the service surfaces the MCP server exposes. Nil members
// make the matching tools report themselves unavailable.
type Backends struct {
	Triangle TriangleReader
	Signals  SignalReader
	Ticks    TickIngester
}

// BackendsFor wires every surface to one arbitrage service.
func BackendsFor(svc *service.ArbitrageService) Backends {
	if svc == nil {
		return Backends{}
	}
	return Backends{Triangle: svc, Signals: svc, Ticks: svc}
}
