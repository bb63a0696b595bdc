package handler

import (
	"net/http"
	"strings"
	"time"

	"fx-triangle-watch/internal/chart"
	"fx-triangle-watch/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TickRequest is the body accepted by POST /api/ticks.
type TickRequest struct {
	Exchange string    `json:"exchange" binding:"required"`
	Symbol   string    `json:"symbol" binding:"required"`
	Kind     string    `json:"kind"`
	Price    float64   `json:"price"`
	Bid      *float64  `json:"bid"`
	Ask      float64   `json:"ask"`
	Time     time.Time `json:"time"`
}

func (r TickRequest) toTick(now time.Time) (domain.Tick, bool) {
	kind := domain.TickKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	switch kind {
	case "":
		kind = domain.TickQuote
	case domain.TickQuote, domain.TickTrade:
	default:
		return domain.Tick{}, false
	}
	at := r.Time
	if at.IsZero() {
		at = now
	}
	tick := domain.Tick{
		Exchange: strings.TrimSpace(r.Exchange),
		Symbol:   strings.ToUpper(strings.TrimSpace(r.Symbol)),
		Kind:     kind,
		Time:     at.UTC(),
		Price:    r.Price,
		AskPrice: r.Ask,
	}
	if r.Bid != nil {
		tick.BidPrice = *r.Bid
		tick.HasBid = true
	}
	return tick, true
}

// GetTriangle godoc
// @Summary      Current triangle state
// @Description  Returns the latest bid per leg, the cross rate and the regime
// @Tags         triangle
// @Produce      json
// @Success      200  {object}  domain.TriangleSnapshot
// @Failure      503  {object}  map[string]string
// @Router       /api/triangle [get]
func (h *Handler) GetTriangle(c *gin.Context) {
	if h.arbitrage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "arbitrage service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-triangle")
	defer span.End()

	snap, err := h.arbitrage.LatestSnapshot(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetSamples godoc
// @Summary      Recent rate samples
// @Tags         triangle
// @Produce      json
// @Param        limit  query  int  false  "Number of samples (default 100, max 500)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/samples [get]
func (h *Handler) GetSamples(c *gin.Context) {
	if h.arbitrage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "arbitrage service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-samples")
	defer span.End()

	limit, ok := parseLimit(c, 100, 500)
	if !ok {
		return
	}
	samples, err := h.arbitrage.ListRateSamples(ctx, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

// GetSamplesChart godoc
// @Summary      Rate chart
// @Description  Renders recent rate samples with the regime thresholds as a PNG
// @Tags         triangle
// @Produce      png
// @Param        limit  query  int  false  "Number of samples (default 200, max 500)"  default(200)
// @Success      200  {file}    binary
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/samples/chart [get]
func (h *Handler) GetSamplesChart(c *gin.Context) {
	if h.arbitrage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "arbitrage service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-samples-chart")
	defer span.End()

	limit, ok := parseLimit(c, 200, 500)
	if !ok {
		return
	}
	png, err := h.arbitrage.RateChart(ctx, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, chart.MimeType, png)
}

// PostTick godoc
// @Summary      Inject a tick
// @Description  Runs one tick through the filters and the monitor
// @Tags         triangle
// @Accept       json
// @Produce      json
// @Param        tick  body  TickRequest  true  "Tick"
// @Success      202  {object}  service.Outcome
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/ticks [post]
func (h *Handler) PostTick(c *gin.Context) {
	if h.arbitrage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "arbitrage service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-tick")
	defer span.End()

	var req TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tick, ok := req.toTick(time.Now())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be quote or trade"})
		return
	}
	span.SetAttributes(attribute.String("symbol", tick.Symbol), attribute.String("exchange", tick.Exchange))

	out, err := h.arbitrage.Ingest(ctx, tick)
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"outcome": out, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"outcome": out})
}
