package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"fx-triangle-watch/internal/domain"
)

var configKeys = []string{
	"DATABASE_URL", "DATABASE_MAX_CONNS", "REDIS_URL", "TELEGRAM_BOT_TOKEN", "LOG_LEVEL", "HTTP_PORT",
	"RABBITMQ_URL", "RABBITMQ_SIGNALS_EXCHANGE", "RABBITMQ_TICKS_EXCHANGE", "RABBITMQ_PREFETCH",
	"FEED_SOURCE", "FEED_URL", "FEED_VENUE", "FEED_TRADES", "ALLOWED_VENUES",
	"TRIANGLE_LEGS", "TRIANGLE_THRESHOLD", "TRIANGLE_THRESHOLD_LOW", "TRIANGLE_SYMMETRIC",
	"TRIANGLE_VALIDATE_LOOP", "TRIANGLE_FILE", "SIGNAL_MAGNITUDE", "SIGNAL_VALIDITY",
	"SPIKE_FILTER_ENABLED", "SPIKE_WINDOW", "SPIKE_THRESHOLD", "SPIKE_MIN_ZSCORE", "SPIKE_REANCHOR_AFTER",
	"RATE_CACHE_TTL_SECS", "SAMPLE_BATCH_SIZE", "SAMPLE_BATCH_TIMEOUT_MS", "SAMPLE_RETENTION_HOURS",
	"MCP_TRANSPORT", "MCP_HTTP_ENABLED", "MCP_HTTP_BIND", "MCP_HTTP_PORT", "MCP_AUTH_TOKEN",
	"MCP_REQUEST_TIMEOUT_SECS", "MCP_RATE_LIMIT_PER_MIN",
	"TUI_SSH_ADDR", "TUI_HOST_KEY_PATH", "TUI_AUTHORIZED_FINGERPRINTS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	want := domain.Triangle{LegA: "EURUSD", LegB: "EURGBP", LegC: "GBPUSD"}
	if cfg.Triangle != want {
		t.Fatalf("unexpected default triangle %+v", cfg.Triangle)
	}
	if cfg.ThresholdHigh != 1.00015 || cfg.Magnitude != 0.0001 || cfg.ValidFor != 5*time.Second {
		t.Fatalf("unexpected monitor defaults: %+v", cfg)
	}
	if cfg.Symmetric || cfg.ValidateLoop || cfg.SpikeEnabled {
		t.Fatalf("optional behaviour should be off by default: %+v", cfg)
	}
	if cfg.FeedSource != FeedSourceNone || cfg.FeedVenue != "ARCA" {
		t.Fatalf("unexpected feed defaults: %s %s", cfg.FeedSource, cfg.FeedVenue)
	}
	if !reflect.DeepEqual(cfg.AllowedVenues, []string{"ARCA"}) {
		t.Fatalf("allowed venues should default to the feed venue, got %v", cfg.AllowedVenues)
	}
	if cfg.MCPTransport != "stdio" || cfg.MCPHTTPBind != "127.0.0.1" || cfg.MCPHTTPPort != 8090 {
		t.Fatalf("unexpected MCP defaults: %s %s:%d", cfg.MCPTransport, cfg.MCPHTTPBind, cfg.MCPHTTPPort)
	}
	if cfg.SampleBatchSize != 100 || cfg.SampleBatchTimeout != 2*time.Second || cfg.SampleRetention != 72*time.Hour {
		t.Fatalf("unexpected sample defaults: %+v", cfg)
	}
	if cfg.RateCacheTTL != 30*time.Second || cfg.HTTPPort != 8080 || cfg.TUISSHAddr != ":2222" {
		t.Fatalf("unexpected misc defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRIANGLE_LEGS", "ETHUSDT, ETHBTC ,BTCUSDT")
	t.Setenv("TRIANGLE_THRESHOLD", "1.001")
	t.Setenv("TRIANGLE_SYMMETRIC", "TRUE")
	t.Setenv("SIGNAL_VALIDITY", "1m30s")
	t.Setenv("ALLOWED_VENUES", "BINANCE, ARCA,BINANCE")
	t.Setenv("FEED_SOURCE", "WebSocket")
	t.Setenv("SPIKE_FILTER_ENABLED", "true")
	t.Setenv("SPIKE_WINDOW", "64")
	t.Setenv("SPIKE_MIN_ZSCORE", "3.5")
	t.Setenv("SPIKE_REANCHOR_AFTER", "12")
	t.Setenv("TUI_AUTHORIZED_FINGERPRINTS", "SHA256:abc,SHA256:def")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Triangle != (domain.Triangle{LegA: "ETHUSDT", LegB: "ETHBTC", LegC: "BTCUSDT"}) {
		t.Fatalf("unexpected triangle %+v", cfg.Triangle)
	}
	if cfg.ThresholdHigh != 1.001 || !cfg.Symmetric || cfg.ValidFor != 90*time.Second {
		t.Fatalf("unexpected monitor overrides: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedVenues, []string{"BINANCE", "ARCA"}) {
		t.Fatalf("unexpected venues %v", cfg.AllowedVenues)
	}
	if cfg.FeedSource != FeedSourceWebsocket {
		t.Fatalf("unexpected feed source %s", cfg.FeedSource)
	}
	opts := cfg.SpikeOptions()
	if !cfg.SpikeEnabled || opts.Window != 64 || opts.MinZScore != 3.5 || opts.Threshold != 0.6 || opts.ReanchorAfter != 12 {
		t.Fatalf("unexpected spike options %+v", opts)
	}
	if len(cfg.TUIAuthorizedFingerprints) != 2 {
		t.Fatalf("unexpected fingerprints %v", cfg.TUIAuthorizedFingerprints)
	}

	mc := cfg.MonitorConfig()
	if err := mc.Validate(); err != nil {
		t.Fatalf("monitor config should validate: %v", err)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRIANGLE_LEGS", "EURUSD,EURUSD")
	t.Setenv("TRIANGLE_THRESHOLD", "0.99")
	t.Setenv("HTTP_PORT", "-1")
	t.Setenv("SIGNAL_VALIDITY", "soon")
	t.Setenv("FEED_SOURCE", "carrier-pigeon")
	t.Setenv("MCP_TRANSPORT", "grpc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Triangle.LegA != "EURUSD" || cfg.Triangle.LegC != "GBPUSD" {
		t.Fatalf("expected default legs, got %+v", cfg.Triangle)
	}
	if cfg.ThresholdHigh != 1.00015 || cfg.HTTPPort != 8080 || cfg.ValidFor != 5*time.Second {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
	if cfg.FeedSource != FeedSourceNone || cfg.MCPTransport != "stdio" {
		t.Fatalf("expected fallback transports, got %s %s", cfg.FeedSource, cfg.MCPTransport)
	}
}

func TestLoadTriangleFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "triangle.yaml")
	doc := `
triangle:
  leg_a: AUDUSD
  leg_b: AUDNZD
  leg_c: NZDUSD
threshold_high: 1.0005
valid_for: 2d
symmetric: true
venues: [OANDA]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("TRIANGLE_FILE", path)
	t.Setenv("TRIANGLE_SYMMETRIC", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Triangle != (domain.Triangle{LegA: "AUDUSD", LegB: "AUDNZD", LegC: "NZDUSD"}) {
		t.Fatalf("file legs should win, got %+v", cfg.Triangle)
	}
	if cfg.ThresholdHigh != 1.0005 || !cfg.Symmetric || cfg.ValidFor != 48*time.Hour {
		t.Fatalf("unexpected file overrides: %+v", cfg)
	}
	if cfg.Magnitude != 0.0001 {
		t.Fatalf("unset file fields must keep env values, got %v", cfg.Magnitude)
	}
	if !reflect.DeepEqual(cfg.AllowedVenues, []string{"OANDA"}) {
		t.Fatalf("unexpected venues %v", cfg.AllowedVenues)
	}
}

func TestLoadTriangleFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRIANGLE_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("triangle: [unclosed"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ReadTriangleFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
