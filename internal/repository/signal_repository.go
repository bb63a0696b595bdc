package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

var signalSchema = []string{
	`CREATE TABLE IF NOT EXISTS arbitrage_signals (
		id BIGSERIAL PRIMARY KEY,
		group_id UUID NOT NULL,
		instrument_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		magnitude DOUBLE PRECISION NOT NULL,
		valid_for_ms BIGINT NOT NULL,
		rate DOUBLE PRECISION NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL,
		UNIQUE (group_id, instrument_id)
	)`,
	`CREATE INDEX IF NOT EXISTS arbitrage_signals_detected_at_idx ON arbitrage_signals (detected_at DESC)`,
	`CREATE INDEX IF NOT EXISTS arbitrage_signals_instrument_idx ON arbitrage_signals (instrument_id, detected_at DESC)`,
}

type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

func (r *SignalRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "signal-repo.run-migrations")
	defer span.End()
	return runStatements(ctx, r.pool, signalSchema)
}

// InsertSignals stores one detection group and returns the signals with their ids.
func (r *SignalRepository) InsertSignals(ctx context.Context, signals []domain.ArbitrageSignal) ([]domain.ArbitrageSignal, error) {
	if len(signals) == 0 {
		return nil, nil
	}

	_, span := r.tracer.Start(ctx, "signal-repo.insert-signals")
	defer span.End()

	batch := &pgx.Batch{}
	for _, s := range signals {
		batch.Queue(
			`INSERT INTO arbitrage_signals (group_id, instrument_id, direction, magnitude, valid_for_ms, rate, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (group_id, instrument_id) DO UPDATE SET
			     direction = EXCLUDED.direction,
			     rate = EXCLUDED.rate
			 RETURNING id`,
			s.GroupID.String(),
			s.InstrumentID,
			string(s.Direction),
			s.Magnitude,
			s.ValidFor.Milliseconds(),
			s.Rate,
			s.DetectedAt.UTC(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.ArbitrageSignal, len(signals))
	copy(out, signals)
	for i := range out {
		if err := br.QueryRow().Scan(&out[i].ID); err != nil {
			return nil, fmt.Errorf("insert signal %s: %w", out[i].InstrumentID, err)
		}
	}
	return out, nil
}

func (r *SignalRepository) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.list-signals")
	defer span.End()

	args := make([]any, 0, 3)
	var sb strings.Builder
	sb.WriteString(`SELECT id, group_id::text, instrument_id, direction, magnitude, valid_for_ms, rate, detected_at
		FROM arbitrage_signals
		WHERE 1=1`)

	if filter.InstrumentID != "" {
		args = append(args, filter.InstrumentID)
		sb.WriteString(fmt.Sprintf(" AND instrument_id = $%d", len(args)))
	}
	if filter.Direction != "" {
		args = append(args, string(filter.Direction))
		sb.WriteString(fmt.Sprintf(" AND direction = $%d", len(args)))
	}

	limit := clampLimit(filter.Limit)
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY detected_at DESC, id DESC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	signals := make([]domain.ArbitrageSignal, 0, limit)
	for rows.Next() {
		var (
			s          domain.ArbitrageSignal
			groupID    string
			direction  string
			validForMS int64
			detectedAt time.Time
		)
		if err := rows.Scan(
			&s.ID,
			&groupID,
			&s.InstrumentID,
			&direction,
			&s.Magnitude,
			&validForMS,
			&s.Rate,
			&detectedAt,
		); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(groupID)
		if err != nil {
			return nil, fmt.Errorf("parse group id %q: %w", groupID, err)
		}
		s.GroupID = parsed
		s.Direction = domain.Direction(direction)
		s.ValidFor = time.Duration(validForMS) * time.Millisecond
		s.DetectedAt = detectedAt.UTC()
		signals = append(signals, s)
	}

	return signals, rows.Err()
}
