package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, b Backends) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "triangle_snapshot",
		Description: "Get the latest leg bids, cross rate and regime of the monitored triangle",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ triangleSnapshotInput) (*mcp.CallToolResult, triangleSnapshotOutput, error) {
		if b.Triangle == nil {
			return nil, triangleSnapshotOutput{}, fmt.Errorf("triangle monitor unavailable")
		}
		snap, err := b.Triangle.LatestSnapshot(ctx)
		if err != nil {
			return nil, triangleSnapshotOutput{}, err
		}
		return nil, triangleSnapshotOutput{Snapshot: snap}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "signals_list",
		Description: "Get recent arbitrage signals with optional instrument and direction filters",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in signalsListInput) (*mcp.CallToolResult, signalsListOutput, error) {
		if b.Signals == nil {
			return nil, signalsListOutput{}, fmt.Errorf("signal history unavailable")
		}
		filter, err := normalizeSignalFilter(in)
		if err != nil {
			return nil, signalsListOutput{}, err
		}
		result, err := b.Signals.ListSignals(ctx, filter)
		if err != nil {
			return nil, signalsListOutput{}, err
		}
		return nil, signalsListOutput{Signals: result}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rate_samples_list",
		Description: "Get the most recent cross-rate samples",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in samplesListInput) (*mcp.CallToolResult, samplesListOutput, error) {
		if b.Triangle == nil {
			return nil, samplesListOutput{}, fmt.Errorf("triangle monitor unavailable")
		}
		result, err := b.Triangle.ListRateSamples(ctx, normalizeSampleLimit(in.Limit))
		if err != nil {
			return nil, samplesListOutput{}, err
		}
		return nil, samplesListOutput{Samples: result}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ticks_ingest",
		Description: "Push one quote through the venue filter and the triangle monitor",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ticksIngestInput) (*mcp.CallToolResult, ticksIngestOutput, error) {
		if b.Ticks == nil {
			return nil, ticksIngestOutput{}, fmt.Errorf("tick ingestion unavailable")
		}
		tick, err := in.toTick(time.Now())
		if err != nil {
			return nil, ticksIngestOutput{}, err
		}
		out, err := b.Ticks.Ingest(ctx, tick)
		result := ticksIngestOutput{Outcome: out}
		if err != nil {
			result.Warning = err.Error()
		}
		return nil, result, nil
	})
}
