package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"fx-triangle-watch/internal/app"
	"fx-triangle-watch/internal/cache"
	"fx-triangle-watch/internal/config"
	"fx-triangle-watch/internal/db"
	mcpserver "fx-triangle-watch/internal/mcp"
	"fx-triangle-watch/internal/repository"
	"fx-triangle-watch/pkg/logging"
	"fx-triangle-watch/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	buildAppFunc      = app.Build
	newMCPServerFunc  = mcpserver.NewServer
	newMCPHandlerFunc = mcpserver.NewHTTPTransportHandler
	runStdioFunc      = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
	exitFunc             = os.Exit
)

// The MCP process has no feed of its own. Snapshots come from the shared
// Redis cache and history from Postgres; ticks_ingest drives its own monitor.
func main() {
	if err := loadEnvFunc(); err != nil {
		logrus.Debug("no .env file loaded")
	}
	cfg, err := loadConfigFunc()
	if err != nil {
		logrus.WithError(err).Error("failed to load config")
		exitFunc(1)
		return
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	if err := run(cfg, logger); err != nil {
		logger.WithField("component", "mcp").WithError(err).Error("mcp server failed")
		exitFunc(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	log := logger.WithField("component", "mcp")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initPostgresFunc(ctx); err != nil {
		return err
	}
	defer db.Close()
	if err := initRedisFunc(ctx); err != nil {
		log.WithError(err).Warn("redis unavailable, snapshots come from the local monitor")
	}

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("error shutting down tracer provider")
		}
	}()

	a, err := buildAppFunc(ctx, app.Options{
		Config: cfg,
		Tracer: tracer,
		Logger: logger,
		Pool:   poolOrNil(),
		Redis:  redisOrNil(),
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := a.Close(closeCtx); err != nil {
			log.WithError(err).Warn("app close failed")
		}
	}()

	mcpSrv := newMCPServerFunc(tracer, mcpserver.BackendsFor(a.Service), mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	switch strings.ToLower(strings.TrimSpace(cfg.MCPTransport)) {
	case "", "stdio":
		log.Info("serving MCP over stdio")
		if err := runStdioFunc(ctx, mcpSrv); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil
	case "http":
		return runHTTPMode(ctx, cancel, cfg, mcpSrv, log)
	default:
		return fmt.Errorf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server, log *logrus.Entry) error {
	if !cfg.MCPHTTPEnabled {
		return errors.New("MCP_HTTP_ENABLED must be true when MCP_TRANSPORT=http")
	}
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return errors.New("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("mcp http server failed")
			cancel()
		}
	}()
	log.WithField("addr", addr).Info("serving MCP over http")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}

func poolOrNil() repository.PgxPool {
	if db.Pool == nil {
		return nil
	}
	return db.Pool
}

func redisOrNil() redis.Cmdable {
	if cache.Client == nil {
		return nil
	}
	return cache.Client
}
