package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fx-triangle-watch/internal/chart"
	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSignals godoc
// @Summary      List emitted arbitrage signals
// @Description  Returns recent signals, newest first, optionally filtered by leg and direction
// @Tags         signals
// @Produce      json
// @Param        instrument  query  string  false  "Leg instrument id (e.g., EURUSD)"
// @Param        direction   query  string  false  "up or down"
// @Param        limit       query  int     false  "Number of signals (default 50, max 500)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	if h.arbitrage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "arbitrage service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	filter := domain.SignalFilter{
		InstrumentID: strings.ToUpper(strings.TrimSpace(c.Query("instrument"))),
	}
	if filter.InstrumentID != "" {
		span.SetAttributes(attribute.String("instrument", filter.InstrumentID))
	}

	if rawDir := strings.ToLower(strings.TrimSpace(c.Query("direction"))); rawDir != "" {
		dir := domain.Direction(rawDir)
		if !dir.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be up or down"})
			return
		}
		filter.Direction = dir
	}

	limit, ok := parseLimit(c, 50, 500)
	if !ok {
		return
	}
	filter.Limit = limit

	signals, err := h.arbitrage.ListSignals(ctx, filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

func parseLimit(c *gin.Context, fallback, max int) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(max)})
		return 0, false
	}
	return n, true
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoStore), errors.Is(err, service.ErrNoRenderer):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, chart.ErrTooFewSamples):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
