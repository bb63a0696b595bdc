package mcp

import (
	"fmt"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/service"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 500
	defaultSampleLimit = 100
	maxSampleLimit     = 500
)

type triangleSnapshotInput struct{}

type triangleSnapshotOutput struct {
	Snapshot domain.TriangleSnapshot `json:"snapshot"`
}

type signalsListInput struct {
	Instrument string `json:"instrument,omitempty" jsonschema:"optional leg instrument id (e.g. EURUSD)"`
	Direction  string `json:"direction,omitempty" jsonschema:"optional direction: up or down"`
	Limit      int    `json:"limit,omitempty" jsonschema:"number of signals to return, max 500"`
}

type signalsListOutput struct {
	Signals []domain.ArbitrageSignal `json:"signals"`
}

type samplesListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of rate samples to return, max 500"`
}

type samplesListOutput struct {
	Samples []domain.RateSample `json:"samples"`
}

type ticksIngestInput struct {
	Exchange string  `json:"exchange" jsonschema:"venue code, must be on the allow-list"`
	Symbol   string  `json:"symbol" jsonschema:"instrument id of one triangle leg"`
	Bid      float64 `json:"bid" jsonschema:"bid price, must be positive"`
	Ask      float64 `json:"ask,omitempty" jsonschema:"optional ask price"`
}

type ticksIngestOutput struct {
	Outcome service.Outcome `json:"outcome"`
	Warning string          `json:"warning,omitempty"`
}

func normalizeSignalLimit(limit int) int {
	if limit <= 0 {
		return defaultSignalLimit
	}
	if limit > maxSignalLimit {
		return maxSignalLimit
	}
	return limit
}

func normalizeSampleLimit(limit int) int {
	if limit <= 0 {
		return defaultSampleLimit
	}
	if limit > maxSampleLimit {
		return maxSampleLimit
	}
	return limit
}

func normalizeSignalFilter(in signalsListInput) (domain.SignalFilter, error) {
	filter := domain.SignalFilter{
		InstrumentID: strings.ToUpper(strings.TrimSpace(in.Instrument)),
		Limit:        normalizeSignalLimit(in.Limit),
	}
	if raw := strings.ToLower(strings.TrimSpace(in.Direction)); raw != "" {
		dir := domain.Direction(raw)
		if !dir.IsValid() {
			return domain.SignalFilter{}, fmt.Errorf("unsupported direction: %s", in.Direction)
		}
		filter.Direction = dir
	}
	return filter, nil
}

func (in ticksIngestInput) toTick(now time.Time) (domain.Tick, error) {
	exchange := strings.TrimSpace(in.Exchange)
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if exchange == "" {
		return domain.Tick{}, fmt.Errorf("exchange is required")
	}
	if symbol == "" {
		return domain.Tick{}, fmt.Errorf("symbol is required")
	}
	if !(in.Bid > 0) {
		return domain.Tick{}, fmt.Errorf("bid must be positive")
	}
	return domain.Tick{
		Exchange: exchange,
		Symbol:   symbol,
		Kind:     domain.TickQuote,
		Time:     now.UTC(),
		BidPrice: in.Bid,
		AskPrice: in.Ask,
		HasBid:   true,
	}, nil
}
