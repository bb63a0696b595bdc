package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fx-triangle-watch/internal/chart"
	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/metrics"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StageKind labels ticks rejected for a kind other than quote or trade.
const StageKind = "kind"

var (
	ErrNoStore    = errors.New("history requires a database")
	ErrNoRenderer = errors.New("chart rendering is not configured")
)

type TickFilter interface {
	Evaluate(tick domain.Tick) (bool, string)
}

type QuoteMonitor interface {
	// Apply records one bid and returns the state it produced, read under the
	// same lock as the update.
	Apply(instrumentID string, bid float64) (domain.QuoteUpdate, bool)
	Snapshot() domain.TriangleSnapshot
	Triangle() domain.Triangle
	Thresholds() (high, low float64)
}

type SignalRepository interface {
	InsertSignals(ctx context.Context, signals []domain.ArbitrageSignal) ([]domain.ArbitrageSignal, error)
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error)
}

type RateSampleRepository interface {
	ListRateSamples(ctx context.Context, limit int) ([]domain.RateSample, error)
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SampleQueue accepts rate samples for asynchronous persistence.
type SampleQueue interface {
	Add(sample domain.RateSample) error
}

type SnapshotCache interface {
	PutSnapshot(ctx context.Context, snap domain.TriangleSnapshot) error
	GetSnapshot(ctx context.Context, tri domain.Triangle) (*domain.TriangleSnapshot, error)
}

type RateChartRenderer interface {
	RenderRateChart(samples []domain.RateSample, bands chart.Bands) ([]byte, error)
}

// SignalSink receives every persisted detection group.
type SignalSink interface {
	NotifySignals(ctx context.Context, signals []domain.ArbitrageSignal) error
}

type SinkFunc func(ctx context.Context, signals []domain.ArbitrageSignal) error

func (f SinkFunc) NotifySignals(ctx context.Context, signals []domain.ArbitrageSignal) error {
	return f(ctx, signals)
}

// Outcome describes what happened to one ingested tick.
type Outcome struct {
	Accepted   bool                     `json:"accepted"`
	RejectedBy string                   `json:"rejected_by,omitempty"`
	Rate       float64                  `json:"rate,omitempty"`
	Signals    []domain.ArbitrageSignal `json:"signals,omitempty"`
}

type Dependencies struct {
	Filter      TickFilter
	Monitor     QuoteMonitor
	SignalRepo  SignalRepository
	SampleRepo  RateSampleRepository
	SampleQueue SampleQueue
	Cache       SnapshotCache
	Charts      RateChartRenderer
}

type ArbitrageService struct {
	tracer trace.Tracer
	log    *logrus.Entry
	deps   Dependencies
	now    func() time.Time

	sinksMu sync.RWMutex
	sinks   map[string]SignalSink
}

func NewArbitrageService(tracer trace.Tracer, logger *logrus.Logger, deps Dependencies) *ArbitrageService {
	return &ArbitrageService{
		tracer: tracer,
		log:    logger.WithField("component", "arbitrage_service"),
		deps:   deps,
		now:    time.Now,
		sinks:  make(map[string]SignalSink),
	}
}

// AddSink registers a named signal destination. A second sink with the same
// name replaces the first.
func (s *ArbitrageService) AddSink(name string, sink SignalSink) {
	if sink == nil {
		return
	}
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks[name] = sink
}

func (s *ArbitrageService) Triangle() domain.Triangle {
	if s.deps.Monitor == nil {
		return domain.Triangle{}
	}
	return s.deps.Monitor.Triangle()
}

// Ingest runs one tick through the filters and the monitor. Rejected ticks and
// feed noise are not errors. An error is returned only when emitted signals
// could not be persisted; sinks still receive them in that case.
func (s *ArbitrageService) Ingest(ctx context.Context, tick domain.Tick) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage-service.ingest")
	defer span.End()

	if s.deps.Monitor == nil {
		return Outcome{}, fmt.Errorf("arbitrage service is not fully initialized")
	}

	metrics.TicksTotal.WithLabelValues(tick.Exchange, tick.Symbol).Inc()
	if tick.Kind != domain.TickQuote && tick.Kind != domain.TickTrade {
		metrics.TicksRejectedTotal.WithLabelValues(StageKind).Inc()
		return Outcome{RejectedBy: StageKind}, nil
	}
	if s.deps.Filter != nil {
		if ok, stage := s.deps.Filter.Evaluate(tick); !ok {
			metrics.TicksRejectedTotal.WithLabelValues(stage).Inc()
			return Outcome{RejectedBy: stage}, nil
		}
	}

	out := Outcome{Accepted: true}
	if tick.Kind == domain.TickTrade {
		return out, nil
	}
	update, applied := s.deps.Monitor.Apply(strings.TrimSpace(tick.Symbol), tick.QuoteBid())
	if !applied {
		return out, nil
	}
	signals, rate := update.Signals, update.Rate
	out.Rate = rate
	if rate > 0 {
		s.recordRate(ctx, update)
	}
	if len(signals) == 0 {
		return out, nil
	}

	span.SetAttributes(attribute.Int("signals", len(signals)), attribute.Float64("rate", rate))
	for _, sig := range signals {
		metrics.SignalsTotal.WithLabelValues(sig.InstrumentID, string(sig.Direction)).Inc()
	}
	s.log.WithFields(logrus.Fields{
		"rate":     rate,
		"group_id": signals[0].GroupID.String(),
	}).Info("triangle mispricing detected")

	var persistErr error
	if s.deps.SignalRepo != nil {
		persisted, err := s.deps.SignalRepo.InsertSignals(ctx, signals)
		if err != nil {
			persistErr = fmt.Errorf("insert signals: %w", err)
			s.log.WithError(err).Error("failed to persist signals")
		} else {
			signals = persisted
		}
	}
	out.Signals = signals
	s.dispatch(ctx, signals)
	return out, persistErr
}

func (s *ArbitrageService) recordRate(ctx context.Context, update domain.QuoteUpdate) {
	metrics.CrossRate.WithLabelValues(update.Snapshot.Triangle.String()).Set(update.Rate)

	if s.deps.SampleQueue != nil {
		if err := s.deps.SampleQueue.Add(update.Sample); err != nil {
			s.log.WithError(err).Warn("failed to queue rate sample")
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.PutSnapshot(ctx, update.Snapshot); err != nil {
			s.log.WithError(err).Warn("failed to cache snapshot")
		}
	}
}

func (s *ArbitrageService) dispatch(ctx context.Context, signals []domain.ArbitrageSignal) {
	s.sinksMu.RLock()
	defer s.sinksMu.RUnlock()
	for name, sink := range s.sinks {
		if err := sink.NotifySignals(ctx, signals); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(name).Inc()
			s.log.WithError(err).WithField("sink", name).Warn("signal delivery failed")
		}
	}
}

// LatestSnapshot prefers the shared cache so processes without a live feed
// still report the current rate.
func (s *ArbitrageService) LatestSnapshot(ctx context.Context) (domain.TriangleSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage-service.latest-snapshot")
	defer span.End()

	if s.deps.Monitor == nil {
		return domain.TriangleSnapshot{}, fmt.Errorf("arbitrage service is not fully initialized")
	}
	local := s.deps.Monitor.Snapshot()
	if s.deps.Cache == nil {
		return local, nil
	}
	cached, err := s.deps.Cache.GetSnapshot(ctx, local.Triangle)
	if err != nil {
		s.log.WithError(err).Warn("snapshot cache read failed")
		return local, nil
	}
	if cached == nil || cached.UpdatedAt.Before(local.UpdatedAt) {
		return local, nil
	}
	return *cached, nil
}

func (s *ArbitrageService) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage-service.list-signals")
	defer span.End()

	if s.deps.SignalRepo == nil {
		return nil, ErrNoStore
	}
	filter.InstrumentID = strings.TrimSpace(filter.InstrumentID)
	filter.Direction = domain.Direction(strings.ToLower(strings.TrimSpace(string(filter.Direction))))
	if filter.Direction != "" && !filter.Direction.IsValid() {
		return nil, fmt.Errorf("invalid direction: %s", filter.Direction)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.deps.SignalRepo.ListSignals(ctx, filter)
}

func (s *ArbitrageService) ListRateSamples(ctx context.Context, limit int) ([]domain.RateSample, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage-service.list-rate-samples")
	defer span.End()

	if s.deps.SampleRepo == nil {
		return nil, ErrNoStore
	}
	if limit <= 0 {
		limit = 100
	}
	return s.deps.SampleRepo.ListRateSamples(ctx, limit)
}

// RateChart renders the most recent samples as a PNG with the monitor's
// regime thresholds drawn as bands.
func (s *ArbitrageService) RateChart(ctx context.Context, limit int) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage-service.rate-chart")
	defer span.End()

	if s.deps.Charts == nil || s.deps.Monitor == nil {
		return nil, ErrNoRenderer
	}
	samples, err := s.ListRateSamples(ctx, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("samples", len(samples)))
	high, low := s.deps.Monitor.Thresholds()
	return s.deps.Charts.RenderRateChart(samples, chart.Bands{High: high, Low: low})
}

func (s *ArbitrageService) DeleteSamplesOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage-service.delete-samples-older-than")
	defer span.End()

	if s.deps.SampleRepo == nil {
		return 0, nil
	}
	if age <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", age)
	}
	return s.deps.SampleRepo.DeleteSamplesBefore(ctx, s.now().UTC().Add(-age))
}
