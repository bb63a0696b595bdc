package db

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const (
	connectTimeout    = 10 * time.Second
	healthCheckPeriod = 30 * time.Second
)

// Pool is nil until InitPostgres connects.
var Pool *pgxpool.Pool

// InitPostgres connects when DATABASE_URL is set. Without it the pool stays nil
// and callers run without persistence. DATABASE_MAX_CONNS overrides the pool
// size pgx derives from the DSN.
func InitPostgres(ctx context.Context) error {
	logger := log.WithField("component", "postgres")

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, skipping Postgres connection")
		return nil
	}
	cfg, err := poolConfig(dsn, os.Getenv("DATABASE_MAX_CONNS"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	Pool = pool
	logger.WithFields(log.Fields{
		"host":      cfg.ConnConfig.Host,
		"database":  cfg.ConnConfig.Database,
		"max_conns": cfg.MaxConns,
	}).Info("connected to postgres")
	return nil
}

func poolConfig(dsn, maxConns string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if raw := strings.TrimSpace(maxConns); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DATABASE_MAX_CONNS %q", raw)
		}
		cfg.MaxConns = int32(n)
	}
	cfg.HealthCheckPeriod = healthCheckPeriod
	return cfg, nil
}

// Close releases the pool. Safe to call when InitPostgres never connected.
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
