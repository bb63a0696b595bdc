package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const defaultRetentionTick = time.Hour

type SampleJanitor interface {
	DeleteSamplesOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// SampleRetention trims old rate samples on a fixed cadence.
type SampleRetention struct {
	tracer    trace.Tracer
	janitor   SampleJanitor
	retention time.Duration
	tick      time.Duration
	log       *logrus.Entry
}

func NewSampleRetention(tracer trace.Tracer, janitor SampleJanitor, retention time.Duration, logger *logrus.Logger) *SampleRetention {
	return &SampleRetention{
		tracer:    tracer,
		janitor:   janitor,
		retention: retention,
		tick:      defaultRetentionTick,
		log:       logger.WithField("component", "sample_retention"),
	}
}

// Start blocks until ctx is cancelled.
func (j *SampleRetention) Start(ctx context.Context) {
	if j == nil || j.janitor == nil || j.retention <= 0 {
		<-ctx.Done()
		return
	}

	j.log.WithField("retention", j.retention.String()).Info("sample retention starting")
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	j.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			j.log.Info("sample retention stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SampleRetention) runOnce(ctx context.Context) {
	if j.tracer != nil {
		var span trace.Span
		ctx, span = j.tracer.Start(ctx, "sample-retention.run")
		defer span.End()
	}
	deleted, err := j.janitor.DeleteSamplesOlderThan(ctx, j.retention)
	if err != nil {
		j.log.WithError(err).Warn("sample cleanup failed")
		return
	}
	if deleted > 0 {
		j.log.WithField("deleted", deleted).Info("sample cleanup removed rows")
	}
}
