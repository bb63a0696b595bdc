package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fx-triangle-watch/internal/chart"
	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/filter"
	"fx-triangle-watch/internal/service"
	signalmonitor "fx-triangle-watch/internal/signal"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var fxTriangle = domain.Triangle{LegA: "EURUSD", LegB: "EURGBP", LegC: "GBPUSD"}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T, deps service.Dependencies) *Handler {
	t.Helper()
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	monitor, err := signalmonitor.NewTriangleMonitor(signalmonitor.DefaultConfig(fxTriangle), nil)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	venues, err := filter.NewExchangeFilter("OANDA")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	deps.Monitor = monitor
	deps.Filter = filter.NewChain(filter.Stage{Name: "venue", Filter: venues})

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(tracer, service.NewArbitrageService(tracer, logger, deps))
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	router := gin.New()
	h.RegisterRoutes(router)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(newTestHandler(t, service.Dependencies{}), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "EURUSD/EURGBP/GBPUSD") {
		t.Fatalf("expected triangle in health body: %s", w.Body.String())
	}
}

func TestPostTicksDrivesTriangle(t *testing.T) {
	h := newTestHandler(t, service.Dependencies{})

	for _, body := range []string{
		`{"exchange":"OANDA","symbol":"eurgbp","bid":1.0}`,
		`{"exchange":"OANDA","symbol":"GBPUSD","bid":1.0}`,
	} {
		if w := serve(h, http.MethodPost, "/api/ticks", body); w.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := serve(h, http.MethodPost, "/api/ticks", `{"exchange":"OANDA","symbol":"EURUSD","bid":1.001}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var resp struct {
		Outcome service.Outcome `json:"outcome"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !resp.Outcome.Accepted || len(resp.Outcome.Signals) != 3 {
		t.Fatalf("expected three signals, got %+v", resp.Outcome)
	}

	w = serve(h, http.MethodGet, "/api/triangle", "")
	var snap domain.TriangleSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if snap.Regime != domain.RegimeAbove || snap.Rate < 1.0009 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestPostTickRejections(t *testing.T) {
	h := newTestHandler(t, service.Dependencies{})

	if w := serve(h, http.MethodPost, "/api/ticks", `{"symbol":"EURUSD"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing exchange, got %d", w.Code)
	}
	if w := serve(h, http.MethodPost, "/api/ticks", `{"exchange":"OANDA","symbol":"EURUSD","kind":"bar"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", w.Code)
	}

	w := serve(h, http.MethodPost, "/api/ticks", `{"exchange":"NYSE","symbol":"EURUSD","bid":1.1}`)
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), `"rejected_by":"venue"`) {
		t.Fatalf("expected venue rejection, got %d %s", w.Code, w.Body.String())
	}
}

func TestPostTickZeroBidIgnored(t *testing.T) {
	h := newTestHandler(t, service.Dependencies{})
	for _, body := range []string{
		`{"exchange":"OANDA","symbol":"EURUSD","bid":1.0}`,
		`{"exchange":"OANDA","symbol":"EURGBP","bid":1.0}`,
		`{"exchange":"OANDA","symbol":"GBPUSD","bid":1.0}`,
	} {
		serve(h, http.MethodPost, "/api/ticks", body)
	}

	w := serve(h, http.MethodPost, "/api/ticks", `{"exchange":"OANDA","symbol":"EURGBP","price":0.6,"bid":0}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), `"signals"`) {
		t.Fatalf("zero bid must not emit signals: %s", w.Body.String())
	}

	var snap domain.TriangleSnapshot
	if err := json.Unmarshal(serve(h, http.MethodGet, "/api/triangle", "").Body.Bytes(), &snap); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if snap.Bids["EURGBP"] != 1.0 || snap.Rate != 1.0 {
		t.Fatalf("zero bid must leave the leg untouched, got %+v", snap)
	}
}

func TestGetSignals(t *testing.T) {
	repo := &signalStoreStub{resp: []domain.ArbitrageSignal{{
		ID: 1, InstrumentID: "EURUSD", Direction: domain.DirectionUp, Rate: 1.0002, DetectedAt: time.Unix(0, 0).UTC(),
	}}}
	h := newTestHandler(t, service.Dependencies{SignalRepo: repo})

	w := serve(h, http.MethodGet, "/api/signals?instrument=eurusd&direction=UP&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if repo.lastFilter.InstrumentID != "EURUSD" || repo.lastFilter.Direction != domain.DirectionUp || repo.lastFilter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", repo.lastFilter)
	}
	var resp struct {
		Signals []domain.ArbitrageSignal `json:"signals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(resp.Signals) != 1 || resp.Signals[0].InstrumentID != "EURUSD" {
		t.Fatalf("unexpected payload %+v", resp)
	}
}

func TestGetSignalsBadParams(t *testing.T) {
	h := newTestHandler(t, service.Dependencies{SignalRepo: &signalStoreStub{}})
	for _, target := range []string{"/api/signals?direction=sideways", "/api/signals?limit=abc", "/api/signals?limit=900"} {
		if w := serve(h, http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	h := newTestHandler(t, service.Dependencies{})
	for _, target := range []string{"/api/signals", "/api/samples"} {
		if w := serve(h, http.MethodGet, target, ""); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", target, w.Code)
		}
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("handler-test"), nil)
	if w := serve(h, http.MethodGet, "/api/triangle", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w := serve(h, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", w.Code)
	}
}

func TestGetSamplesChart(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &sampleStoreStub{resp: []domain.RateSample{
		{Triangle: fxTriangle.String(), Rate: 1.0001, SampledAt: base},
		{Triangle: fxTriangle.String(), Rate: 1.0003, Regime: domain.RegimeAbove, SampledAt: base.Add(time.Second)},
		{Triangle: fxTriangle.String(), Rate: 0.9999, SampledAt: base.Add(2 * time.Second)},
	}}
	h := newTestHandler(t, service.Dependencies{SampleRepo: store, Charts: chart.NewRenderer()})

	w := serve(h, http.MethodGet, "/api/samples/chart?limit=50", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != chart.MimeType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Fatal("expected a PNG body")
	}
	if store.lastLimit != 50 {
		t.Fatalf("expected limit 50, got %d", store.lastLimit)
	}

	store.resp = store.resp[:1]
	if w := serve(h, http.MethodGet, "/api/samples/chart", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a single sample, got %d", w.Code)
	}
	if store.lastLimit != 200 {
		t.Fatalf("expected default limit 200, got %d", store.lastLimit)
	}
	if w := serve(h, http.MethodGet, "/api/samples/chart?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	noRenderer := newTestHandler(t, service.Dependencies{SampleRepo: store})
	if w := serve(noRenderer, http.MethodGet, "/api/samples/chart", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without renderer, got %d", w.Code)
	}
}

type sampleStoreStub struct {
	lastLimit int
	resp      []domain.RateSample
}

func (s *sampleStoreStub) ListRateSamples(_ context.Context, limit int) ([]domain.RateSample, error) {
	s.lastLimit = limit
	return append([]domain.RateSample(nil), s.resp...), nil
}

func (s *sampleStoreStub) DeleteSamplesBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type signalStoreStub struct {
	lastFilter domain.SignalFilter
	resp       []domain.ArbitrageSignal
}

func (s *signalStoreStub) InsertSignals(_ context.Context, signals []domain.ArbitrageSignal) ([]domain.ArbitrageSignal, error) {
	return append([]domain.ArbitrageSignal(nil), signals...), nil
}

func (s *signalStoreStub) ListSignals(_ context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error) {
	s.lastFilter = filter
	return append([]domain.ArbitrageSignal(nil), s.resp...), nil
}
