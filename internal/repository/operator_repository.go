package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

var operatorSchema = []string{
	`CREATE TABLE IF NOT EXISTS dashboard_operators (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		public_key TEXT NOT NULL,
		key_type TEXT NOT NULL,
		fingerprint TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Operator is a person allowed to open the dashboard over SSH.
type Operator struct {
	ID          int64
	Username    string
	PublicKey   string
	KeyType     string
	Fingerprint string
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

type OperatorRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewOperatorRepository(pool PgxPool, tracer trace.Tracer) *OperatorRepository {
	return &OperatorRepository{pool: pool, tracer: tracer}
}

func (r *OperatorRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "operator-repo.run-migrations")
	defer span.End()
	return runStatements(ctx, r.pool, operatorSchema)
}

// FindByFingerprint returns nil, nil when no active operator owns the key.
func (r *OperatorRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*Operator, error) {
	_, span := r.tracer.Start(ctx, "operator-repo.find-by-fingerprint")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT id, username, public_key, key_type, fingerprint, is_active, last_login_at, created_at
		 FROM dashboard_operators
		 WHERE fingerprint = $1 AND is_active = TRUE`,
		fingerprint,
	)

	var op Operator
	err := row.Scan(&op.ID, &op.Username, &op.PublicKey, &op.KeyType, &op.Fingerprint, &op.IsActive, &op.LastLoginAt, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *OperatorRepository) UpsertOperator(ctx context.Context, op Operator) error {
	_, span := r.tracer.Start(ctx, "operator-repo.upsert-operator")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO dashboard_operators (username, public_key, key_type, fingerprint, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (username) DO UPDATE SET
		     public_key = EXCLUDED.public_key,
		     key_type = EXCLUDED.key_type,
		     fingerprint = EXCLUDED.fingerprint,
		     is_active = TRUE`,
		op.Username, op.PublicKey, op.KeyType, op.Fingerprint,
	)
	return err
}

func (r *OperatorRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	_, span := r.tracer.Start(ctx, "operator-repo.update-last-login")
	defer span.End()

	_, err := r.pool.Exec(ctx, `UPDATE dashboard_operators SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *OperatorRepository) ListActive(ctx context.Context) ([]Operator, error) {
	_, span := r.tracer.Start(ctx, "operator-repo.list-active")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, username, public_key, key_type, fingerprint, is_active, last_login_at, created_at
		 FROM dashboard_operators
		 WHERE is_active = TRUE
		 ORDER BY username ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []Operator
	for rows.Next() {
		var op Operator
		if err := rows.Scan(&op.ID, &op.Username, &op.PublicKey, &op.KeyType, &op.Fingerprint, &op.IsActive, &op.LastLoginAt, &op.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
