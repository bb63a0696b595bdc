package filter

import (
	"errors"
	"sort"
	"strings"

	"fx-triangle-watch/internal/domain"
)

var ErrNoVenues = errors.New("venue allow-list is empty")

// TickFilter decides whether a tick may enter the pipeline.
type TickFilter interface {
	Accepts(tick domain.Tick) bool
}

// ExchangeFilter admits ticks whose venue code is on an allow-list.
type ExchangeFilter struct {
	venues map[string]struct{}
}

func NewExchangeFilter(venues ...string) (*ExchangeFilter, error) {
	set := make(map[string]struct{}, len(venues))
	for _, v := range venues {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, ErrNoVenues
	}
	return &ExchangeFilter{venues: set}, nil
}

// Accepts reports whether tick.Exchange exactly equals a listed venue. The
// comparison is case sensitive and does not trim; callers that parse venue
// codes from text normalize them first.
func (f *ExchangeFilter) Accepts(tick domain.Tick) bool {
	_, ok := f.venues[tick.Exchange]
	return ok
}

func (f *ExchangeFilter) Venues() []string {
	out := make([]string, 0, len(f.venues))
	for v := range f.venues {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Stage is a named filter inside a Chain.
type Stage struct {
	Name   string
	Filter TickFilter
}

// Chain runs stages in order and stops at the first rejection.
type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	kept := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s.Filter != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{stages: kept}
}

// Evaluate returns the name of the rejecting stage, or "" when every stage accepts.
func (c *Chain) Evaluate(tick domain.Tick) (bool, string) {
	for _, s := range c.stages {
		if !s.Filter.Accepts(tick) {
			return false, s.Name
		}
	}
	return true, ""
}

func (c *Chain) Accepts(tick domain.Tick) bool {
	ok, _ := c.Evaluate(tick)
	return ok
}
