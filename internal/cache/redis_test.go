package cache

import (
	"context"
	"testing"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RateCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateCache(client, ttl), mr
}

func TestRateCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	tri := domain.Triangle{LegA: "EURUSD", LegB: "EURGBP", LegC: "GBPUSD"}

	miss, err := c.GetSnapshot(context.Background(), tri)
	if err != nil || miss != nil {
		t.Fatalf("expected miss, got %+v %v", miss, err)
	}

	snap := domain.TriangleSnapshot{
		Triangle: tri,
		Bids:     map[string]float64{"EURUSD": 1.1, "EURGBP": 0.85, "GBPUSD": 1.29},
		Rate:     1.003,
		Regime:   domain.RegimeAbove,
	}
	if err := c.PutSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := c.GetSnapshot(context.Background(), tri)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Rate != 1.003 || got.Bids["EURGBP"] != 0.85 || got.Regime != domain.RegimeAbove {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestRateCacheExpires(t *testing.T) {
	c, mr := newTestCache(t, 5*time.Second)
	tri := domain.Triangle{LegA: "A", LegB: "B", LegC: "C"}
	if err := c.PutSnapshot(context.Background(), domain.TriangleSnapshot{Triangle: tri, Rate: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(6 * time.Second)
	got, err := c.GetSnapshot(context.Background(), tri)
	if err != nil || got != nil {
		t.Fatalf("expected expired snapshot, got %+v %v", got, err)
	}
}

func TestInitRedisUsesEnvAddr(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", mr.Addr())
	if err := InitRedis(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Client == nil {
		t.Fatal("expected client to be set")
	}
	_ = Client.Close()
}
