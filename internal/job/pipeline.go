package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/service"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TickSource produces ticks until ctx is done or the upstream ends.
type TickSource interface {
	Name() string
	Run(ctx context.Context, out chan<- domain.Tick) error
}

type TickIngester interface {
	Ingest(ctx context.Context, tick domain.Tick) (service.Outcome, error)
}

// Pipeline fans every source into a single ingest loop so the monitor sees
// ticks in arrival order.
type Pipeline struct {
	sources []TickSource
	ingest  TickIngester
	buffer  int
	log     *logrus.Entry
}

func NewPipeline(ingest TickIngester, logger *logrus.Logger, sources ...TickSource) *Pipeline {
	return &Pipeline{
		sources: sources,
		ingest:  ingest,
		buffer:  1024,
		log:     logger.WithField("component", "pipeline"),
	}
}

// Run returns nil on cancellation or when every source has finished.
func (p *Pipeline) Run(ctx context.Context) error {
	if len(p.sources) == 0 {
		return errors.New("pipeline has no tick sources")
	}

	ticks := make(chan domain.Tick, p.buffer)
	g, gctx := errgroup.WithContext(ctx)

	var producers sync.WaitGroup
	for _, src := range p.sources {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			if err := src.Run(gctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			return nil
		})
	}
	go func() {
		producers.Wait()
		close(ticks)
	}()

	g.Go(func() error {
		return p.pump(gctx, ticks)
	})

	p.log.WithField("sources", len(p.sources)).Info("pipeline started")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pipeline) pump(ctx context.Context, ticks <-chan domain.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, err := p.ingest.Ingest(ctx, tick); err != nil {
				p.log.WithError(err).WithField("symbol", tick.Symbol).Warn("ingest failed")
			}
		}
	}
}
