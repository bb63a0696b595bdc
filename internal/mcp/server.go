package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fx-triangle-watch/internal/metrics"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serverName            = "fx-triangle-watch-mcp"
	serverVersion         = "1.0.0"
	defaultRequestTimeout = 5 * time.Second

	instructions = "Inspect the monitored currency triangle: triangle_snapshot for the current legs and cross rate, " +
		"signals_list and rate_samples_list for history. ticks_ingest feeds one quote into the live monitor."
)

type ServerConfig struct {
	RequestTimeout time.Duration
}

func NewServer(tracer trace.Tracer, backends Backends, cfg ServerConfig) *sdkmcp.Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: serverName, Version: serverVersion}, &sdkmcp.ServerOptions{
		Instructions: instructions,
		Logger:       slog.Default(),
	})
	srv.AddReceivingMiddleware(instrument(tracer, timeout))

	registerTools(srv, backends)
	registerResources(srv, backends)
	return srv
}

func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

// instrument bounds every request by timeout, wraps it in a span when tracer
// is set and counts it by outcome.
func instrument(tracer trace.Tracer, timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var span trace.Span
			if tracer != nil {
				name, attrs := describeRequest(method, req)
				ctx, span = tracer.Start(ctx, name, trace.WithAttributes(attrs...))
				defer span.End()
			}

			result, err := next(ctx, method, req)
			outcome := requestOutcome(result, err)
			metrics.MCPRequestsTotal.WithLabelValues(method, outcome).Inc()
			if span != nil && outcome != "ok" {
				if err != nil {
					span.RecordError(err)
				}
				span.SetStatus(codes.Error, outcome)
			}
			return result, err
		}
	}
}

// describeRequest names the span after the tool or resource being touched.
func describeRequest(method string, req sdkmcp.Request) (string, []attribute.KeyValue) {
	attrs := []attribute.KeyValue{attribute.String("mcp.method", method)}
	switch r := req.(type) {
	case *sdkmcp.CallToolRequest:
		tool := strings.TrimSpace(r.Params.Name)
		if tool == "" {
			return "mcp.tool.call", attrs
		}
		return "mcp.tool." + tool, append(attrs, attribute.String("mcp.tool", tool))
	case *sdkmcp.ReadResourceRequest:
		return "mcp.resource.read", append(attrs, attribute.String("mcp.resource.uri", strings.TrimSpace(r.Params.URI)))
	default:
		return "mcp." + strings.ReplaceAll(method, "/", "."), attrs
	}
}

func requestOutcome(result sdkmcp.Result, err error) string {
	if err != nil {
		return "error"
	}
	if call, ok := result.(*sdkmcp.CallToolResult); ok && call != nil && call.IsError {
		return "tool_error"
	}
	return "ok"
}
