// Package replay runs recorded quotes through the filter chain and triangle
// monitor offline and reports what would have been detected.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"
	"fx-triangle-watch/internal/filter"
	signalmonitor "fx-triangle-watch/internal/signal"
)

var ErrEmptyFile = errors.New("replay file has no ticks")

// Result summarises one replay.
type Result struct {
	Ticks       int
	Rejected    map[string]int
	Ignored     int
	RateUpdates int
	MinRate     float64
	MaxRate     float64
	First       time.Time
	Last        time.Time
	Signals     []domain.ArbitrageSignal
}

// Detections returns the number of signal groups.
func (r Result) Detections() int {
	groups := make(map[string]struct{}, len(r.Signals)/3)
	for _, s := range r.Signals {
		groups[s.GroupID.String()] = struct{}{}
	}
	return len(groups)
}

// RejectedTotal sums rejections across filter stages.
func (r Result) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// ReadTicks parses CSV rows of time,exchange,symbol,bid,ask. A header row is
// skipped. Time is RFC 3339 or unix milliseconds.
func ReadTicks(r io.Reader) ([]domain.Tick, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true

	var ticks []domain.Tick
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
			continue
		}
		tick, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticks = append(ticks, tick)
	}
	if len(ticks) == 0 {
		return nil, ErrEmptyFile
	}
	return ticks, nil
}

func parseRecord(rec []string) (domain.Tick, error) {
	ts, err := parseTime(strings.TrimSpace(rec[0]))
	if err != nil {
		return domain.Tick{}, err
	}
	bid, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("bid: %w", err)
	}
	var ask float64
	if raw := strings.TrimSpace(rec[4]); raw != "" {
		if ask, err = strconv.ParseFloat(raw, 64); err != nil {
			return domain.Tick{}, fmt.Errorf("ask: %w", err)
		}
	}
	return domain.Tick{
		Exchange: strings.TrimSpace(rec[1]),
		Symbol:   strings.TrimSpace(rec[2]),
		Kind:     domain.TickQuote,
		Time:     ts,
		Price:    bid,
		BidPrice: bid,
		AskPrice: ask,
		HasBid:   true,
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

// Run replays ticks in file order. The monitor clock follows tick time so
// detections carry the recorded timestamps.
func Run(ctx context.Context, cfg signalmonitor.Config, chain *filter.Chain, ticks []domain.Tick) (Result, error) {
	var current time.Time
	monitor, err := signalmonitor.NewTriangleMonitor(cfg, func() time.Time { return current })
	if err != nil {
		return Result{}, err
	}

	res := Result{Rejected: make(map[string]int), MinRate: math.Inf(1), MaxRate: math.Inf(-1)}
	for i, tick := range ticks {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		res.Ticks++
		if res.First.IsZero() || tick.Time.Before(res.First) {
			res.First = tick.Time
		}
		if tick.Time.After(res.Last) {
			res.Last = tick.Time
		}

		if chain != nil {
			if ok, stage := chain.Evaluate(tick); !ok {
				res.Rejected[stage]++
				continue
			}
		}
		if !monitor.Tracks(tick.Symbol) {
			res.Ignored++
			continue
		}

		current = tick.Time
		signals, rate := monitor.OnQuoteUpdate(tick.Symbol, tick.QuoteBid())
		if rate > 0 {
			res.RateUpdates++
			res.MinRate = math.Min(res.MinRate, rate)
			res.MaxRate = math.Max(res.MaxRate, rate)
		}
		res.Signals = append(res.Signals, signals...)
	}

	if res.RateUpdates == 0 {
		res.MinRate, res.MaxRate = 0, 0
	}
	return res, nil
}
