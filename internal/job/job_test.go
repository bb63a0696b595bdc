package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/service"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type sliceSource struct {
	name  string
	ticks []domain.Tick
	err   error
}

func (s sliceSource) Name() string { return s.name }

func (s sliceSource) Run(ctx context.Context, out chan<- domain.Tick) error {
	for _, tk := range s.ticks {
		select {
		case out <- tk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

type recordingIngester struct {
	mu      sync.Mutex
	symbols []string
	err     error
}

func (r *recordingIngester) Ingest(_ context.Context, tick domain.Tick) (service.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols = append(r.symbols, tick.Symbol)
	return service.Outcome{Accepted: true}, r.err
}

func TestPipelineDrainsAllSources(t *testing.T) {
	ing := &recordingIngester{err: errors.New("ignored")}
	p := NewPipeline(ing, quietLogger(),
		sliceSource{name: "a", ticks: []domain.Tick{{Symbol: "EURUSD"}, {Symbol: "EURGBP"}}},
		sliceSource{name: "b", ticks: []domain.Tick{{Symbol: "GBPUSD"}}},
	)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ing.symbols) != 3 {
		t.Fatalf("expected 3 ingested ticks, got %v", ing.symbols)
	}
}

func TestPipelineSurfacesSourceError(t *testing.T) {
	p := NewPipeline(&recordingIngester{}, quietLogger(), sliceSource{name: "bad", err: errors.New("auth failed")})
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected source error")
	}
	if err := NewPipeline(&recordingIngester{}, quietLogger()).Run(context.Background()); err == nil {
		t.Fatal("expected error without sources")
	}
}

type blockingSource struct{}

func (blockingSource) Name() string { return "blocking" }

func (blockingSource) Run(ctx context.Context, _ chan<- domain.Tick) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPipelineStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPipeline(&recordingIngester{}, quietLogger(), blockingSource{}).Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

type stubJanitor struct {
	calls int32
	age   atomic.Int64
}

func (s *stubJanitor) DeleteSamplesOlderThan(_ context.Context, age time.Duration) (int64, error) {
	atomic.AddInt32(&s.calls, 1)
	s.age.Store(int64(age))
	return 2, nil
}

func TestSampleRetentionRunsOnStart(t *testing.T) {
	stub := &stubJanitor{}
	j := NewSampleRetention(trace.NewNoopTracerProvider().Tracer("test"), stub, 48*time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&stub.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention job did not stop")
	}
	if atomic.LoadInt32(&stub.calls) == 0 {
		t.Fatal("expected cleanup to run at least once")
	}
	if time.Duration(stub.age.Load()) != 48*time.Hour {
		t.Fatalf("unexpected retention %v", time.Duration(stub.age.Load()))
	}
}

func TestSampleRetentionDisabled(t *testing.T) {
	j := NewSampleRetention(nil, &stubJanitor{}, 0, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j.Start(ctx)
}
