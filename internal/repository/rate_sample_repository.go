package repository

import (
	"context"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

var rateSampleSchema = []string{
	`CREATE TABLE IF NOT EXISTS rate_samples (
		id BIGSERIAL PRIMARY KEY,
		triangle TEXT NOT NULL,
		bid_a DOUBLE PRECISION NOT NULL,
		bid_b DOUBLE PRECISION NOT NULL,
		bid_c DOUBLE PRECISION NOT NULL,
		rate DOUBLE PRECISION NOT NULL,
		regime TEXT NOT NULL,
		sampled_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rate_samples_sampled_at_idx ON rate_samples (sampled_at DESC)`,
}

type RateSampleRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRateSampleRepository(pool PgxPool, tracer trace.Tracer) *RateSampleRepository {
	return &RateSampleRepository{pool: pool, tracer: tracer}
}

func (r *RateSampleRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "rate-sample-repo.run-migrations")
	defer span.End()
	return runStatements(ctx, r.pool, rateSampleSchema)
}

func (r *RateSampleRepository) InsertRateSamples(ctx context.Context, samples []domain.RateSample) error {
	if len(samples) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "rate-sample-repo.insert-rate-samples")
	defer span.End()

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(
			`INSERT INTO rate_samples (triangle, bid_a, bid_b, bid_c, rate, regime, sampled_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.Triangle, s.BidA, s.BidB, s.BidC, s.Rate, string(s.Regime), s.SampledAt.UTC(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range samples {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *RateSampleRepository) ListRateSamples(ctx context.Context, limit int) ([]domain.RateSample, error) {
	_, span := r.tracer.Start(ctx, "rate-sample-repo.list-rate-samples")
	defer span.End()

	limit = clampLimit(limit)
	rows, err := r.pool.Query(ctx,
		`SELECT id, triangle, bid_a, bid_b, bid_c, rate, regime, sampled_at
		 FROM rate_samples
		 ORDER BY sampled_at DESC, id DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]domain.RateSample, 0, limit)
	for rows.Next() {
		var s domain.RateSample
		var regime string
		var sampledAt time.Time
		if err := rows.Scan(&s.ID, &s.Triangle, &s.BidA, &s.BidB, &s.BidC, &s.Rate, &regime, &sampledAt); err != nil {
			return nil, err
		}
		s.Regime = domain.Regime(regime)
		s.SampledAt = sampledAt.UTC()
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (r *RateSampleRepository) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "rate-sample-repo.delete-samples-before")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM rate_samples WHERE sampled_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
