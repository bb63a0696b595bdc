package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"fx-triangle-watch/internal/app"
	"fx-triangle-watch/internal/cache"
	"fx-triangle-watch/internal/config"
	"fx-triangle-watch/internal/db"
	"fx-triangle-watch/internal/repository"
	"fx-triangle-watch/internal/tui"
	"fx-triangle-watch/pkg/logging"
	"fx-triangle-watch/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultHostKeyPath = ".ssh/fx_triangle_watch_ed25519"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	buildAppFunc     = app.Build
	runLocalFunc     = func(model tea.Model) error {
		_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	}
	startSSHServerFunc    = func(srv *ssh.Server) error { return srv.ListenAndServe() }
	shutdownSSHServerFunc = func(srv *ssh.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify     = ossignal.Notify
	waitForSignalFunc     = func(quit <-chan os.Signal) { <-quit }
	readFileFunc          = os.ReadFile
	stdout                = io.Writer(os.Stdout)
	exitFunc              = os.Exit
)

// Usage:
//
//	tui                                            serve the dashboard over SSH
//	tui local                                      run the dashboard in this terminal
//	tui add-operator <username> <public-key-file>  register an SSH operator
//	tui list-operators
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

	if err := run(cfg, logger, os.Args[1:]); err != nil {
		logger.WithField("component", "tui").WithError(err).Error("dashboard failed")
		exitFunc(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger, args []string) error {
	log := logger.WithField("component", "tui")
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "", "local", "add-operator", "list-operators":
	default:
		return fmt.Errorf("unknown command %q", mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initPostgresFunc(ctx); err != nil {
		return err
	}
	defer db.Close()
	if err := initRedisFunc(ctx); err != nil {
		log.WithError(err).Warn("redis unavailable, the dashboard only sees its own monitor")
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
	defer a.Close(context.Background())

	switch mode {
	case "add-operator":
		return addOperator(ctx, adminOrNil(a), args[1:], stdout)
	case "list-operators":
		return listOperators(ctx, adminOrNil(a), stdout)
	}

	services := tui.Services{
		Snapshots: a.Service,
		Signals:   a.Service,
		Triangle:  a.Monitor.Triangle(),
	}

	if mode == "local" {
		model := tui.NewAppModel(services)
		return runLocalFunc(model)
	}

	auth := newOperatorAuth(cfg.TUIAuthorizedFingerprints, operatorsOrNil(a), logger)
	if auth.Empty() {
		return errors.New("TUI_AUTHORIZED_FINGERPRINTS is empty and no database is configured")
	}
	srv, err := newSSHServer(cfg, services, auth, logger)
	if err != nil {
		return err
	}

	go func() {
		if err := startSSHServerFunc(srv); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.WithError(err).Error("ssh server failed")
			cancel()
		}
	}()
	log.WithField("addr", cfg.TUISSHAddr).Info("serving dashboard over ssh")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info("shutting down ssh server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownSSHServerFunc(srv, shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("ssh server forced to shutdown: %w", err)
	}
	return nil
}

func newSSHServer(cfg *config.Config, services tui.Services, auth *operatorAuth, logger *logrus.Logger) (*ssh.Server, error) {
	hostKey := cfg.TUIHostKeyPath
	if hostKey == "" {
		hostKey = defaultHostKeyPath
	}
	return wish.NewServer(
		wish.WithAddress(cfg.TUISSHAddr),
		wish.WithHostKeyPath(hostKey),
		wish.WithPublicKeyAuth(auth.Handler),
		wish.WithMiddleware(
			bm.Middleware(sessionHandler(services)),
			activeterm.Middleware(),
			sessionLogger(logger),
		),
	)
}

func sessionHandler(services tui.Services) bm.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		svc := services
		svc.Username = operatorName(s.Context())
		model := tui.NewAppModel(svc)
		if pty, _, ok := s.Pty(); ok {
			model.SetSize(pty.Window.Width, pty.Window.Height)
		}
		return model, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

func sessionLogger(logger *logrus.Logger) wish.Middleware {
	log := logger.WithField("component", "tui_session")
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			start := time.Now()
			fields := logrus.Fields{"user": operatorName(s.Context()), "remote": s.RemoteAddr().String()}
			log.WithFields(fields).Info("session opened")
			next(s)
			log.WithFields(fields).WithField("duration", time.Since(start).String()).Info("session closed")
		}
	}
}

func operatorsOrNil(a *app.App) operatorStore {
	if a.Operators == nil {
		return nil
	}
	return a.Operators
}

func adminOrNil(a *app.App) operatorAdmin {
	if a.Operators == nil {
		return nil
	}
	return a.Operators
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
