package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"fx-triangle-watch/internal/config"
	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/repository"
	"fx-triangle-watch/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testKey(t *testing.T) gossh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := gossh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}
	return key
}

type stubOperators struct {
	byFingerprint map[string]*repository.Operator
	err           error
	stamped       []int64
}

func (s *stubOperators) FindByFingerprint(_ context.Context, fp string) (*repository.Operator, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byFingerprint[fp], nil
}

func (s *stubOperators) UpdateLastLogin(_ context.Context, id int64) error {
	s.stamped = append(s.stamped, id)
	return nil
}

func TestOperatorAuthStaticList(t *testing.T) {
	key := testKey(t)
	auth := newOperatorAuth([]string{" " + gossh.FingerprintSHA256(key) + " "}, nil, quietLogger())

	name, ok := auth.admit(context.Background(), "alice", key)
	if !ok || name != "alice" {
		t.Fatalf("expected static key admitted as alice, got %q %v", name, ok)
	}
	if _, ok := auth.admit(context.Background(), "mallory", testKey(t)); ok {
		t.Fatal("unknown key must be rejected")
	}
}

func TestOperatorAuthStore(t *testing.T) {
	key := testKey(t)
	store := &stubOperators{byFingerprint: map[string]*repository.Operator{
		gossh.FingerprintSHA256(key): {ID: 9, Username: "desk-ops"},
	}}
	auth := newOperatorAuth(nil, store, quietLogger())

	name, ok := auth.admit(context.Background(), "root", key)
	if !ok || name != "desk-ops" {
		t.Fatalf("expected operator name, got %q %v", name, ok)
	}
	if len(store.stamped) != 1 || store.stamped[0] != 9 {
		t.Fatalf("expected last login stamped, got %v", store.stamped)
	}

	store.err = errors.New("db down")
	if _, ok := auth.admit(context.Background(), "root", key); ok {
		t.Fatal("lookup errors must reject")
	}
}

func TestOperatorAuthEmpty(t *testing.T) {
	if !newOperatorAuth([]string{"", " "}, nil, quietLogger()).Empty() {
		t.Fatal("blank fingerprints should leave the allow-list empty")
	}
	if newOperatorAuth(nil, &stubOperators{}, quietLogger()).Empty() {
		t.Fatal("a store should make the allow-list non-empty")
	}
}

func TestRunLocal(t *testing.T) {
	restore := stubTUIDeps(testConfig())
	defer restore()

	var got tea.Model
	runLocalFunc = func(m tea.Model) error {
		got = m
		return nil
	}

	if err := run(testConfig(), quietLogger(), []string{"local"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	app, ok := got.(tui.AppModel)
	if !ok {
		t.Fatalf("expected tui.AppModel, got %T", got)
	}
	if app.ActiveTab() != tui.TabDashboard {
		t.Fatal("dashboard should be the first tab")
	}
}

func TestRunSSHRequiresAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.TUIAuthorizedFingerprints = nil
	restore := stubTUIDeps(cfg)
	defer restore()

	err := run(cfg, quietLogger(), nil)
	if err == nil || !strings.Contains(err.Error(), "TUI_AUTHORIZED_FINGERPRINTS") {
		t.Fatalf("expected allow-list error, got %v", err)
	}
}

func TestRunSSHServesUntilSignal(t *testing.T) {
	cfg := testConfig()
	cfg.TUIHostKeyPath = t.TempDir() + "/host_ed25519"
	restore := stubTUIDeps(cfg)
	defer restore()

	started := make(chan string, 1)
	startSSHServerFunc = func(srv *ssh.Server) error {
		started <- srv.Addr
		return ssh.ErrServerClosed
	}
	waitForSignalFunc = func(<-chan os.Signal) {
		if addr := <-started; addr != "127.0.0.1:0" {
			t.Errorf("unexpected ssh addr %q", addr)
		}
	}
	shutdownCalled := false
	shutdownSSHServerFunc = func(*ssh.Server, context.Context) error {
		shutdownCalled = true
		return nil
	}

	if err := run(cfg, quietLogger(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !shutdownCalled {
		t.Fatal("expected graceful shutdown")
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	restore := stubTUIDeps(testConfig())
	defer restore()

	if err := run(testConfig(), quietLogger(), []string{"serve-http"}); err == nil || !strings.Contains(err.Error(), "serve-http") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunOperatorCommandsNeedDatabase(t *testing.T) {
	restore := stubTUIDeps(testConfig())
	defer restore()

	for _, args := range [][]string{{"list-operators"}, {"add-operator", "alice", "key.pub"}} {
		if err := run(testConfig(), quietLogger(), args); !errors.Is(err, errNoOperatorStore) {
			t.Fatalf("%v: expected errNoOperatorStore, got %v", args, err)
		}
	}
}

func TestMainExitsOnConfigError(t *testing.T) {
	restore := stubTUIDeps(nil)
	defer restore()

	loadConfigFunc = func() (*config.Config, error) { return nil, errors.New("boom") }
	code := 0
	exitFunc = func(c int) { code = c }

	main()

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:                  "panic",
		AllowedVenues:             []string{"OANDA"},
		FeedSource:                config.FeedSourceNone,
		Triangle:                  domain.Triangle{LegA: "EURUSD", LegB: "EURGBP", LegC: "GBPUSD"},
		ThresholdHigh:             1.00015,
		Magnitude:                 0.0001,
		ValidFor:                  5 * time.Second,
		TUISSHAddr:                "127.0.0.1:0",
		TUIAuthorizedFingerprints: []string{"SHA256:test"},
	}
}

func stubTUIDeps(cfg *config.Config) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origBuildApp := buildAppFunc
	origRunLocal := runLocalFunc
	origStartSSH := startSSHServerFunc
	origShutdownSSH := shutdownSSHServerFunc
	origNotify := setupSignalNotify
	origWait := waitForSignalFunc
	origReadFile := readFileFunc
	origStdout := stdout
	origExit := exitFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) { return cfg, nil }
	initPostgresFunc = func(context.Context) error { return nil }
	initRedisFunc = func(context.Context) error { return nil }
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	runLocalFunc = func(tea.Model) error { return nil }
	startSSHServerFunc = func(*ssh.Server) error { return ssh.ErrServerClosed }
	shutdownSSHServerFunc = func(*ssh.Server, context.Context) error { return nil }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	readFileFunc = func(string) ([]byte, error) { return nil, os.ErrNotExist }
	stdout = io.Discard
	exitFunc = func(int) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		buildAppFunc = origBuildApp
		runLocalFunc = origRunLocal
		startSSHServerFunc = origStartSSH
		shutdownSSHServerFunc = origShutdownSSH
		setupSignalNotify = origNotify
		waitForSignalFunc = origWait
		readFileFunc = origReadFile
		stdout = origStdout
		exitFunc = origExit
	}
}
