package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/filter"
	signalmonitor "fx-triangle-watch/internal/signal"

	"github.com/sirupsen/logrus"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

const (
	FeedSourceNone      = "none"
	FeedSourceWebsocket = "websocket"
	FeedSourceRabbitMQ  = "rabbitmq"

	defaultLegs  = "EURUSD,EURGBP,GBPUSD"
	defaultVenue = "ARCA"
)

type Config struct {
	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string
	LogLevel         string
	HTTPPort         int

	RabbitMQURL     string
	SignalsExchange string
	TicksExchange   string
	RabbitPrefetch  int

	FeedSource    string
	FeedURL       string
	FeedVenue     string
	FeedTrades    bool
	AllowedVenues []string

	Triangle      domain.Triangle
	ThresholdHigh float64
	ThresholdLow  float64
	Symmetric     bool
	ValidateLoop  bool
	Magnitude     float64
	ValidFor      time.Duration

	SpikeEnabled       bool
	SpikeWindow        int
	SpikeThreshold     float64
	SpikeMinZScore     float64
	SpikeReanchorAfter int

	RateCacheTTL       time.Duration
	SampleBatchSize    int
	SampleBatchTimeout time.Duration
	SampleRetention    time.Duration

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	TUISSHAddr                string
	TUIHostKeyPath            string
	TUIAuthorizedFingerprints []string
}

// TriangleFile is the optional YAML document named by TRIANGLE_FILE. Zero
// fields leave the env values in place.
type TriangleFile struct {
	Triangle      domain.Triangle `yaml:"triangle"`
	ThresholdHigh float64         `yaml:"threshold_high"`
	ThresholdLow  float64         `yaml:"threshold_low"`
	Magnitude     float64         `yaml:"magnitude"`
	ValidFor      string          `yaml:"valid_for"`
	Symmetric     *bool           `yaml:"symmetric"`
	ValidateLoop  *bool           `yaml:"validate_loop"`
	Venues        []string        `yaml:"venues"`
}

// Load reads the environment. Malformed numeric values fall back to defaults;
// only an unreadable or invalid TRIANGLE_FILE is an error.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		RabbitMQURL:      strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		TUIHostKeyPath:   strings.TrimSpace(os.Getenv("TUI_HOST_KEY_PATH")),
		FeedURL:          strings.TrimSpace(os.Getenv("FEED_URL")),
	}

	if cfg.TelegramBotToken == "" {
		logrus.Warn("TELEGRAM_BOT_TOKEN not set, alerts disabled")
	}
	if cfg.DatabaseURL == "" {
		logrus.Warn("DATABASE_URL not set, signal history disabled")
	}
	if cfg.RedisURL == "" {
		logrus.Warn("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.LogLevel = stringOr("LOG_LEVEL", "info")
	cfg.HTTPPort = positiveInt("HTTP_PORT", 8080)

	cfg.SignalsExchange = stringOr("RABBITMQ_SIGNALS_EXCHANGE", "triangle.signals")
	cfg.TicksExchange = stringOr("RABBITMQ_TICKS_EXCHANGE", "market.ticks")
	cfg.RabbitPrefetch = positiveInt("RABBITMQ_PREFETCH", 64)

	cfg.FeedSource = strings.ToLower(stringOr("FEED_SOURCE", FeedSourceNone))
	switch cfg.FeedSource {
	case FeedSourceNone, FeedSourceWebsocket, FeedSourceRabbitMQ:
	default:
		logrus.Warnf("unsupported FEED_SOURCE=%q, defaulting to %s", cfg.FeedSource, FeedSourceNone)
		cfg.FeedSource = FeedSourceNone
	}
	cfg.FeedVenue = stringOr("FEED_VENUE", defaultVenue)
	cfg.FeedTrades = boolOr("FEED_TRADES", false)
	cfg.AllowedVenues = splitList(os.Getenv("ALLOWED_VENUES"))
	if len(cfg.AllowedVenues) == 0 {
		cfg.AllowedVenues = []string{cfg.FeedVenue}
	}

	tri, err := signalmonitor.ParseLegs(stringOr("TRIANGLE_LEGS", defaultLegs))
	if err != nil {
		logrus.WithError(err).Warnf("invalid TRIANGLE_LEGS, defaulting to %s", defaultLegs)
		tri, _ = signalmonitor.ParseLegs(defaultLegs)
	}
	cfg.Triangle = tri
	cfg.ThresholdHigh = floatAbove("TRIANGLE_THRESHOLD", signalmonitor.DefaultThresholdHigh, 1)
	cfg.ThresholdLow = floatAbove("TRIANGLE_THRESHOLD_LOW", 0, 0)
	cfg.Symmetric = boolOr("TRIANGLE_SYMMETRIC", false)
	cfg.ValidateLoop = boolOr("TRIANGLE_VALIDATE_LOOP", false)
	cfg.Magnitude = floatAbove("SIGNAL_MAGNITUDE", signalmonitor.DefaultMagnitude, 0)
	cfg.ValidFor = durationOr("SIGNAL_VALIDITY", signalmonitor.DefaultValidFor)

	spike := filter.DefaultSpikeOptions()
	cfg.SpikeEnabled = boolOr("SPIKE_FILTER_ENABLED", false)
	cfg.SpikeWindow = positiveInt("SPIKE_WINDOW", spike.Window)
	cfg.SpikeThreshold = floatAbove("SPIKE_THRESHOLD", spike.Threshold, 0)
	cfg.SpikeMinZScore = floatAbove("SPIKE_MIN_ZSCORE", spike.MinZScore, 0)
	cfg.SpikeReanchorAfter = positiveInt("SPIKE_REANCHOR_AFTER", spike.ReanchorAfter)

	cfg.RateCacheTTL = time.Duration(positiveInt("RATE_CACHE_TTL_SECS", 30)) * time.Second
	cfg.SampleBatchSize = positiveInt("SAMPLE_BATCH_SIZE", 100)
	cfg.SampleBatchTimeout = time.Duration(positiveInt("SAMPLE_BATCH_TIMEOUT_MS", 2000)) * time.Millisecond
	cfg.SampleRetention = time.Duration(positiveInt("SAMPLE_RETENTION_HOURS", 72)) * time.Hour

	cfg.MCPTransport = strings.ToLower(stringOr("MCP_TRANSPORT", "stdio"))
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		logrus.Warnf("unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = boolOr("MCP_HTTP_ENABLED", false)
	cfg.MCPHTTPBind = stringOr("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = positiveInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = positiveInt("MCP_REQUEST_TIMEOUT_SECS", 5)
	cfg.MCPRateLimitPerMin = positiveInt("MCP_RATE_LIMIT_PER_MIN", 60)

	cfg.TUISSHAddr = stringOr("TUI_SSH_ADDR", ":2222")
	cfg.TUIAuthorizedFingerprints = splitList(os.Getenv("TUI_AUTHORIZED_FINGERPRINTS"))

	if path := strings.TrimSpace(os.Getenv("TRIANGLE_FILE")); path != "" {
		file, err := ReadTriangleFile(path)
		if err != nil {
			return nil, err
		}
		cfg.applyTriangleFile(file)
	}
	return cfg, nil
}

func ReadTriangleFile(path string) (TriangleFile, error) {
	var file TriangleFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read triangle file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return file, fmt.Errorf("parse triangle file %s: %w", path, err)
	}
	if file.ValidFor != "" {
		if _, err := str2duration.ParseDuration(file.ValidFor); err != nil {
			return file, fmt.Errorf("parse triangle file valid_for: %w", err)
		}
	}
	return file, nil
}

func (c *Config) applyTriangleFile(file TriangleFile) {
	if file.Triangle.LegA != "" || file.Triangle.LegB != "" || file.Triangle.LegC != "" {
		c.Triangle = domain.Triangle{
			LegA: strings.TrimSpace(file.Triangle.LegA),
			LegB: strings.TrimSpace(file.Triangle.LegB),
			LegC: strings.TrimSpace(file.Triangle.LegC),
		}
	}
	if file.ThresholdHigh != 0 {
		c.ThresholdHigh = file.ThresholdHigh
	}
	if file.ThresholdLow != 0 {
		c.ThresholdLow = file.ThresholdLow
	}
	if file.Magnitude != 0 {
		c.Magnitude = file.Magnitude
	}
	if file.ValidFor != "" {
		d, _ := str2duration.ParseDuration(file.ValidFor)
		c.ValidFor = d
	}
	if file.Symmetric != nil {
		c.Symmetric = *file.Symmetric
	}
	if file.ValidateLoop != nil {
		c.ValidateLoop = *file.ValidateLoop
	}
	if len(file.Venues) > 0 {
		c.AllowedVenues = file.Venues
	}
}

// MonitorConfig is validated by signal.NewTriangleMonitor, not here.
func (c *Config) MonitorConfig() signalmonitor.Config {
	return signalmonitor.Config{
		Triangle:      c.Triangle,
		ThresholdHigh: c.ThresholdHigh,
		ThresholdLow:  c.ThresholdLow,
		Magnitude:     c.Magnitude,
		ValidFor:      c.ValidFor,
		Symmetric:     c.Symmetric,
		ValidateLoop:  c.ValidateLoop,
	}
}

func (c *Config) SpikeOptions() filter.SpikeOptions {
	opts := filter.DefaultSpikeOptions()
	opts.Window = c.SpikeWindow
	opts.Threshold = c.SpikeThreshold
	opts.MinZScore = c.SpikeMinZScore
	opts.ReanchorAfter = c.SpikeReanchorAfter
	return opts
}

func stringOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func floatAbove(key string, fallback, floor float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > floor {
			return n
		}
	}
	return fallback
}

func boolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	switch {
	case strings.EqualFold(v, "true"):
		return true
	case strings.EqualFold(v, "false"):
		return false
	}
	return fallback
}

// durationOr accepts Go durations plus day and week units ("2d").
func durationOr(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := str2duration.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
