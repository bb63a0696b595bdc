package mcp

import (
	"context"
	"encoding/json"
	"time"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/service"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var testTriangle = domain.Triangle{LegA: "EURUSD", LegB: "EURGBP", LegC: "GBPUSD"}

type stubTriangle struct {
	snapshot        domain.TriangleSnapshot
	samples         []domain.RateSample
	lastSampleLimit int
}

func (s *stubTriangle) Triangle() domain.Triangle { return testTriangle }

func (s *stubTriangle) LatestSnapshot(context.Context) (domain.TriangleSnapshot, error) {
	return s.snapshot, nil
}

func (s *stubTriangle) ListRateSamples(_ context.Context, limit int) ([]domain.RateSample, error) {
	s.lastSampleLimit = limit
	return append([]domain.RateSample(nil), s.samples...), nil
}

type stubSignals struct {
	listed     []domain.ArbitrageSignal
	lastFilter domain.SignalFilter
}

func (s *stubSignals) ListSignals(_ context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error) {
	s.lastFilter = filter
	return append([]domain.ArbitrageSignal(nil), s.listed...), nil
}

type stubIngester struct {
	ticks []domain.Tick
}

func (s *stubIngester) Ingest(_ context.Context, tick domain.Tick) (service.Outcome, error) {
	s.ticks = append(s.ticks, tick)
	return service.Outcome{Accepted: true, Rate: 1.0001}, nil
}

type testBackends struct {
	triangle *stubTriangle
	signals  *stubSignals
	ticks    *stubIngester
}

func testServer() (*sdkmcp.Server, testBackends) {
	at := time.Unix(0, 0).UTC()
	b := testBackends{
		triangle: &stubTriangle{
			snapshot: domain.TriangleSnapshot{
				Triangle:  testTriangle,
				Bids:      map[string]float64{"EURUSD": 1.1, "EURGBP": 0.85, "GBPUSD": 1.294},
				Rate:      1.00009,
				Regime:    domain.RegimeInside,
				Threshold: 1.00015,
				UpdatedAt: at,
			},
			samples: []domain.RateSample{{ID: 1, Triangle: testTriangle.String(), Rate: 1.00009, SampledAt: at}},
		},
		signals: &stubSignals{listed: []domain.ArbitrageSignal{{
			ID: 1, InstrumentID: "EURUSD", Direction: domain.DirectionUp, Magnitude: 0.0001, Rate: 1.0002, DetectedAt: at,
		}}},
		ticks: &stubIngester{},
	}

	srv := NewServer(nil, Backends{Triangle: b.triangle, Signals: b.signals, Ticks: b.ticks}, ServerConfig{RequestTimeout: time.Second})
	return srv, b
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
