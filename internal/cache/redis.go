package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var Client *redis.Client

func InitRedis(ctx context.Context) error {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	Client = client
	log.WithField("addr", addr).Info("connected to redis")
	return nil
}

const snapshotKeyPrefix = "triangle:snapshot:"

// RateCache keeps the latest triangle snapshot in Redis so readers in other
// processes see the live rate without touching the monitor.
type RateCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRateCache(client redis.Cmdable, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RateCache{client: client, ttl: ttl}
}

func snapshotKey(tri domain.Triangle) string {
	return snapshotKeyPrefix + tri.String()
}

func (c *RateCache) PutSnapshot(ctx context.Context, snap domain.TriangleSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(snap.Triangle), payload, c.ttl).Err()
}

// GetSnapshot returns nil, nil on a cache miss.
func (c *RateCache) GetSnapshot(ctx context.Context, tri domain.Triangle) (*domain.TriangleSnapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey(tri)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.TriangleSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &snap, nil
}
