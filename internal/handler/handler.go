package handler

import (
	"net/http"
	"time"

	"fx-triangle-watch/internal/metrics"
	"fx-triangle-watch/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer    trace.Tracer
	arbitrage *service.ArbitrageService
	started   time.Time
}

func New(tracer trace.Tracer, arbitrage *service.ArbitrageService) *Handler {
	return &Handler{
		tracer:    tracer,
		arbitrage: arbitrage,
		started:   time.Now(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/api/triangle", h.GetTriangle)
	r.GET("/api/signals", h.GetSignals)
	r.GET("/api/samples", h.GetSamples)
	r.GET("/api/samples/chart", h.GetSamplesChart)
	r.POST("/api/ticks", h.PostTick)
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()

	body := gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.arbitrage != nil {
		body["triangle"] = h.arbitrage.Triangle().String()
	}
	c.JSON(http.StatusOK, body)
}
