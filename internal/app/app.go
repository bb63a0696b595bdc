// Package app assembles the arbitrage pipeline shared by every binary.
package app

import (
	"context"
	"errors"
	"fmt"

	"fx-triangle-watch/internal/batch"
	"fx-triangle-watch/internal/broker"
	"fx-triangle-watch/internal/cache"
	"fx-triangle-watch/internal/chart"
	"fx-triangle-watch/internal/config"
	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/feed"
	"fx-triangle-watch/internal/filter"
	"fx-triangle-watch/internal/job"
	"fx-triangle-watch/internal/repository"
	"fx-triangle-watch/internal/service"
	signalmonitor "fx-triangle-watch/internal/signal"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the process-level infrastructure. Pool and Redis may be nil.
type Options struct {
	Config  *config.Config
	Tracer  trace.Tracer
	Logger  *logrus.Logger
	Pool    repository.PgxPool
	Redis   redis.Cmdable
	Publish bool
}

type App struct {
	Service    *service.ArbitrageService
	Monitor    *signalmonitor.TriangleMonitor
	SignalRepo *repository.SignalRepository
	SampleRepo *repository.RateSampleRepository
	Operators  *repository.OperatorRepository

	cfg       *config.Config
	logger    *logrus.Logger
	samples   *batch.Buffer[domain.RateSample]
	publisher *broker.Publisher
}

// Build validates the monitor and filter configuration, runs migrations when a
// pool is present and wires every optional sink.
func Build(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app requires a config")
	}
	log := opts.Logger.WithField("component", "app")

	monitor, err := signalmonitor.NewTriangleMonitor(cfg.MonitorConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("triangle monitor: %w", err)
	}
	chain, err := BuildFilterChain(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Monitor: monitor, cfg: cfg, logger: opts.Logger}
	deps := service.Dependencies{Filter: chain, Monitor: monitor, Charts: chart.NewRenderer()}

	if opts.Pool != nil {
		a.SignalRepo = repository.NewSignalRepository(opts.Pool, opts.Tracer)
		a.SampleRepo = repository.NewRateSampleRepository(opts.Pool, opts.Tracer)
		a.Operators = repository.NewOperatorRepository(opts.Pool, opts.Tracer)
		for name, m := range map[string]interface {
			RunMigrations(context.Context) error
		}{"signals": a.SignalRepo, "samples": a.SampleRepo, "operators": a.Operators} {
			if err := m.RunMigrations(ctx); err != nil {
				return nil, fmt.Errorf("run %s migrations: %w", name, err)
			}
		}

		a.samples = batch.New(batch.Config{
			Size:    cfg.SampleBatchSize,
			Timeout: cfg.SampleBatchTimeout,
		}, a.SampleRepo.InsertRateSamples, opts.Logger.WithField("component", "sample_batch"))
		a.samples.Start(ctx)

		deps.SignalRepo = a.SignalRepo
		deps.SampleRepo = a.SampleRepo
		deps.SampleQueue = a.samples
	} else {
		log.Warn("no database pool, signals and samples will not be persisted")
	}

	if opts.Redis != nil {
		deps.Cache = cache.NewRateCache(opts.Redis, cfg.RateCacheTTL)
	}

	a.Service = service.NewArbitrageService(opts.Tracer, opts.Logger, deps)

	if opts.Publish && cfg.RabbitMQURL != "" {
		pub, err := broker.DialPublisher(cfg.RabbitMQURL, cfg.SignalsExchange, opts.Logger)
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		a.Service.AddSink("rabbitmq", service.SinkFunc(pub.PublishSignals))
	}

	log.WithField("triangle", monitor.Triangle().String()).Info("pipeline assembled")
	return a, nil
}

// BuildFilterChain runs the venue allow-list first so spike state only ever
// sees ticks from trusted venues.
func BuildFilterChain(cfg *config.Config) (*filter.Chain, error) {
	venues, err := filter.NewExchangeFilter(cfg.AllowedVenues...)
	if err != nil {
		return nil, fmt.Errorf("venue filter: %w", err)
	}
	stages := []filter.Stage{{Name: "venue", Filter: venues}}
	if cfg.SpikeEnabled {
		stages = append(stages, filter.Stage{Name: "spike", Filter: filter.NewSpikeFilter(cfg.SpikeOptions())})
	}
	return filter.NewChain(stages...), nil
}

// Sources returns the tick sources selected by FEED_SOURCE. An empty slice
// means ticks only arrive through the HTTP or MCP surfaces.
func (a *App) Sources() ([]job.TickSource, error) {
	legs := a.Monitor.Triangle().Legs()
	switch a.cfg.FeedSource {
	case config.FeedSourceWebsocket:
		f, err := feed.NewBinanceFeed(feed.Config{
			URL:     a.cfg.FeedURL,
			Venue:   a.cfg.FeedVenue,
			Symbols: legs,
			Trades:  a.cfg.FeedTrades,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return []job.TickSource{f}, nil
	case config.FeedSourceRabbitMQ:
		c, err := broker.NewTickConsumer(broker.ConsumerConfig{
			URL:      a.cfg.RabbitMQURL,
			Exchange: a.cfg.TicksExchange,
			Prefetch: a.cfg.RabbitPrefetch,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return []job.TickSource{c}, nil
	default:
		return nil, nil
	}
}

// Close flushes queued rate samples and releases the broker connection.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.samples != nil {
		if err := a.samples.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain samples: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
