package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangle_ticks_total", Help: "Ticks received by the pipeline"},
		[]string{"exchange", "symbol"},
	)
	TicksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangle_ticks_rejected_total", Help: "Ticks dropped by a filter stage"},
		[]string{"stage"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangle_signals_total", Help: "Arbitrage signals emitted"},
		[]string{"instrument", "direction"},
	)
	SinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangle_sink_errors_total", Help: "Failed signal deliveries"},
		[]string{"sink"},
	)
	CrossRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "triangle_cross_rate", Help: "Latest computed cross rate"},
		[]string{"triangle"},
	)
	MCPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangle_mcp_requests_total", Help: "MCP requests by method and result"},
		[]string{"method", "result"},
	)
	MCPRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triangle_mcp_http_rejected_total", Help: "MCP HTTP requests refused before dispatch"},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TicksRejectedTotal,
		SignalsTotal,
		SinkErrorsTotal,
		CrossRate,
		MCPRequestsTotal,
		MCPRejectedTotal,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
