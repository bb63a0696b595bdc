package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrNotRunning = errors.New("batch buffer is not running")

// Config controls when buffered items are flushed.
type Config struct {
	Size    int
	Timeout time.Duration
}

type FlushFunc[T any] func(ctx context.Context, items []T) error

// Buffer collects items and hands them to a flush function once Size items are
// queued or Timeout has elapsed since the first queued item.
type Buffer[T any] struct {
	cfg    Config
	flush  FlushFunc[T]
	logger *logrus.Entry

	mu    sync.Mutex
	ctx   context.Context
	items []T
	timer *time.Timer
}

func New[T any](cfg Config, flush FlushFunc[T], logger *logrus.Entry) *Buffer[T] {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	return &Buffer[T]{cfg: cfg, flush: flush, logger: logger}
}

// Start enables Add and binds ctx to timer driven flushes.
func (b *Buffer[T]) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

func (b *Buffer[T]) Add(item T) error {
	b.mu.Lock()
	ctx := b.ctx
	if ctx == nil {
		b.mu.Unlock()
		return ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		return err
	}

	b.items = append(b.items, item)
	var ready []T
	if len(b.items) >= b.cfg.Size {
		ready = b.takeLocked()
	} else if b.timer == nil && b.cfg.Timeout > 0 {
		b.timer = time.AfterFunc(b.cfg.Timeout, b.onTimer)
	}
	b.mu.Unlock()

	return b.run(ctx, ready)
}

// Drain flushes whatever is queued using ctx, typically during shutdown.
func (b *Buffer[T]) Drain(ctx context.Context) error {
	b.mu.Lock()
	ready := b.takeLocked()
	b.mu.Unlock()
	return b.run(ctx, ready)
}

// Pending returns the number of queued items.
func (b *Buffer[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Buffer[T]) onTimer() {
	b.mu.Lock()
	ctx := b.ctx
	ready := b.takeLocked()
	b.mu.Unlock()

	if err := b.run(ctx, ready); err != nil && b.logger != nil {
		b.logger.WithError(err).Warn("batch flush failed")
	}
}

func (b *Buffer[T]) takeLocked() []T {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.items) == 0 {
		return nil
	}
	out := make([]T, len(b.items))
	copy(out, b.items)
	b.items = b.items[:0]
	return out
}

func (b *Buffer[T]) run(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := b.flush(ctx, items); err != nil {
		return err
	}
	if b.logger != nil {
		b.logger.WithFields(logrus.Fields{
			"size":    len(items),
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("flushed batch")
	}
	return nil
}
