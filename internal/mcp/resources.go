package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const jsonMIME = "application/json"

var (
	errTriangleUnavailable = errors.New("triangle monitor unavailable")
	errSignalsUnavailable  = errors.New("signal history unavailable")
)

func registerResources(server *mcp.Server, b Backends) {
	server.AddResource(&mcp.Resource{
		URI:         "triangle://legs",
		Name:        "triangle-legs",
		Description: "The three legs of the monitored currency loop",
		MIMEType:    jsonMIME,
	}, b.readLegs)

	server.AddResource(&mcp.Resource{
		URI:         "triangle://snapshot",
		Name:        "triangle-snapshot",
		Description: "Latest leg bids, cross rate and regime",
		MIMEType:    jsonMIME,
	}, b.readSnapshot)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "signals://latest{?instrument,direction,limit}",
		Name:        "signals-latest",
		Description: "Recent arbitrage signals, filterable by instrument, direction and limit",
		MIMEType:    jsonMIME,
	}, b.readSignals)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "samples://latest{?limit}",
		Name:        "rate-samples-latest",
		Description: "Recent cross-rate samples, newest first",
		MIMEType:    jsonMIME,
	}, b.readSamples)
}

func (b Backends) readLegs(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if b.Triangle == nil {
		return nil, errTriangleUnavailable
	}
	return jsonResource(req.Params.URI, b.Triangle.Triangle())
}

func (b Backends) readSnapshot(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if b.Triangle == nil {
		return nil, errTriangleUnavailable
	}
	snap, err := b.Triangle.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, triangleSnapshotOutput{Snapshot: snap})
}

func (b Backends) readSignals(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if b.Signals == nil {
		return nil, errSignalsUnavailable
	}
	query, err := resourceQuery(req.Params.URI, "signals", "latest")
	if err != nil {
		return nil, err
	}
	limit, err := queryInt(query, "limit")
	if err != nil {
		return nil, err
	}
	filter, err := normalizeSignalFilter(signalsListInput{
		Instrument: query.Get("instrument"),
		Direction:  query.Get("direction"),
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	list, err := b.Signals.ListSignals(ctx, filter)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, signalsListOutput{Signals: list})
}

func (b Backends) readSamples(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if b.Triangle == nil {
		return nil, errTriangleUnavailable
	}
	query, err := resourceQuery(req.Params.URI, "samples", "latest")
	if err != nil {
		return nil, err
	}
	limit, err := queryInt(query, "limit")
	if err != nil {
		return nil, err
	}

	samples, err := b.Triangle.ListRateSamples(ctx, normalizeSampleLimit(limit))
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, samplesListOutput{Samples: samples})
}

// resourceQuery returns the query of uri when it is scheme://host, and a
// not-found error otherwise.
func resourceQuery(uri, scheme, host string) (url.Values, error) {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != scheme || parsed.Host != host {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return parsed.Query(), nil
}

func queryInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, raw)
	}
	return n, nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: jsonMIME, Text: string(body)}},
	}, nil
}
