package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"fx-triangle-watch/internal/app"
	"fx-triangle-watch/internal/bot"
	"fx-triangle-watch/internal/cache"
	"fx-triangle-watch/internal/config"
	"fx-triangle-watch/internal/db"
	"fx-triangle-watch/internal/handler"
	"fx-triangle-watch/internal/job"
	"fx-triangle-watch/internal/repository"
	"fx-triangle-watch/pkg/logging"
	"fx-triangle-watch/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "fx-triangle-watch/docs"
)

var (
	loadEnvFunc          = godotenv.Load
	loadConfigFunc       = config.Load
	initPostgresFunc     = db.InitPostgres
	initRedisFunc        = cache.InitRedis
	initTracerFunc       = tracing.InitTracer
	buildAppFunc         = app.Build
	startTelegramBotFunc = bot.StartTelegramBot
	startPipelineFunc    = func(p *job.Pipeline, ctx context.Context, logger *logrus.Logger) {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.WithError(err).Error("tick pipeline stopped")
			}
		}()
	}
	startRetentionFunc     = func(j *job.SampleRetention, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.New
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

// @title           FX Triangle Watch API
// @version         1.0
// @description     Triangular arbitrage monitor over a live FX or crypto tick stream.

// @host      localhost:8080
// @BasePath  /
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
	logger := logging.New(cfg.LogLevel, nil)
	log := logger.WithField("component", "server")

	if err := run(cfg, logger); err != nil {
		log.WithError(err).Error("server failed")
		exitFunc(1)
		return
	}
	log.Info("server exiting")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	log := logger.WithField("component", "server")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initPostgresFunc(ctx); err != nil {
		return err
	}
	defer db.Close()
	if err := initRedisFunc(ctx); err != nil {
		log.WithError(err).Warn("redis unavailable, snapshots will not be cached")
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
		Config:  cfg,
		Tracer:  tracer,
		Logger:  logger,
		Pool:    poolOrNil(),
		Redis:   redisOrNil(),
		Publish: true,
	})
	if err != nil {
		return err
	}

	alerts, err := startTelegramBotFunc(cfg.TelegramBotToken, a.Service, logger)
	if err != nil {
		log.WithError(err).Warn("telegram bot disabled")
	} else if alerts != nil {
		a.Service.AddSink("telegram", alerts)
	}

	sources, err := a.Sources()
	if err != nil {
		return err
	}
	if len(sources) > 0 {
		startPipelineFunc(job.NewPipeline(a.Service, logger, sources...), ctx, logger)
	} else {
		log.Info("no feed configured, ticks accepted on POST /api/ticks only")
	}
	startRetentionFunc(job.NewSampleRetention(tracer, a.Service, cfg.SampleRetention, logger), ctx)

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig()))
	r.Use(otelgin.Middleware("fx-triangle-watch"))
	handler.New(tracer, a.Service).RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              httpAddr(cfg),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			cancel()
		}
	}()
	log.WithField("addr", srv.Addr).Info("http server listening")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	var errs []error
	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func httpAddr(cfg *config.Config) string {
	port := cfg.HTTPPort
	if port <= 0 {
		port = 8080
	}
	return fmt.Sprintf(":%d", port)
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	return c
}

// The package-level handles are concrete pointers; a nil pointer must not
// become a non-nil interface.
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
