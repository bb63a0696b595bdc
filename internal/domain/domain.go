package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TickKind string

const (
	TickTrade TickKind = "trade"
	TickQuote TickKind = "quote"
)

// Tick is a single market event as delivered by a feed. Ticks are passed by value
// and never mutated after construction.
type Tick struct {
	Exchange string    `json:"exchange"`
	Symbol   string    `json:"symbol"`
	Kind     TickKind  `json:"kind"`
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`
	BidPrice float64   `json:"bid_price,omitempty"`
	AskPrice float64   `json:"ask_price,omitempty"`
	// HasBid marks BidPrice as reported by the feed, including a reported 0.
	HasBid bool `json:"-"`
}

// QuoteBid returns the bid of a quote tick. Price stands in only when the feed
// reported no bid at all; an explicit zero bid stays zero.
func (t Tick) QuoteBid() float64 {
	if t.HasBid || t.BidPrice != 0 {
		return t.BidPrice
	}
	return t.Price
}

type tickJSON struct {
	Exchange string    `json:"exchange"`
	Symbol   string    `json:"symbol"`
	Kind     TickKind  `json:"kind"`
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`
	BidPrice *float64  `json:"bid_price,omitempty"`
	AskPrice float64   `json:"ask_price,omitempty"`
}

// MarshalJSON writes bid_price whenever the bid was reported.
func (t Tick) MarshalJSON() ([]byte, error) {
	w := tickJSON{
		Exchange: t.Exchange,
		Symbol:   t.Symbol,
		Kind:     t.Kind,
		Time:     t.Time,
		Price:    t.Price,
		AskPrice: t.AskPrice,
	}
	if t.HasBid || t.BidPrice != 0 {
		bid := t.BidPrice
		w.BidPrice = &bid
	}
	return json.Marshal(w)
}

// UnmarshalJSON sets HasBid when the payload carries bid_price.
func (t *Tick) UnmarshalJSON(data []byte) error {
	var w tickJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Tick{
		Exchange: w.Exchange,
		Symbol:   w.Symbol,
		Kind:     w.Kind,
		Time:     w.Time,
		Price:    w.Price,
		AskPrice: w.AskPrice,
	}
	if w.BidPrice != nil {
		t.BidPrice = *w.BidPrice
		t.HasBid = true
	}
	return nil
}

// ReferencePrice is the price used for spike detection.
func (t Tick) ReferencePrice() float64 {
	if t.Kind == TickQuote {
		return t.QuoteBid()
	}
	return t.Price
}

type QuoteObservation struct {
	InstrumentID string    `json:"instrument_id"`
	BidPrice     float64   `json:"bid_price"`
	Time         time.Time `json:"time"`
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Opposite flips the direction.
func (d Direction) Opposite() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// ArbitrageSignal is a directional intent for one leg of a detected mispricing.
// The three legs of one detection share a GroupID.
type ArbitrageSignal struct {
	ID           int64         `json:"id"`
	GroupID      uuid.UUID     `json:"group_id"`
	InstrumentID string        `json:"instrument_id"`
	Direction    Direction     `json:"direction"`
	Magnitude    float64       `json:"magnitude"`
	ValidFor     time.Duration `json:"valid_for"`
	Rate         float64       `json:"rate"`
	DetectedAt   time.Time     `json:"detected_at"`
}

// ExpiresAt is the end of the signal's validity window.
func (s ArbitrageSignal) ExpiresAt() time.Time {
	return s.DetectedAt.Add(s.ValidFor)
}

type Regime string

const (
	RegimeUnknown Regime = "unknown"
	RegimeInside  Regime = "inside"
	RegimeAbove   Regime = "above"
	RegimeBelow   Regime = "below"
)

// Triangle names the three legs of a closed currency loop A->B, B->C, C->A.
type Triangle struct {
	LegA string `json:"leg_a" yaml:"leg_a"`
	LegB string `json:"leg_b" yaml:"leg_b"`
	LegC string `json:"leg_c" yaml:"leg_c"`
}

func (t Triangle) Legs() []string {
	return []string{t.LegA, t.LegB, t.LegC}
}

func (t Triangle) String() string {
	return strings.Join(t.Legs(), "/")
}

// RateSample is one recomputation of the triangle rate.
type RateSample struct {
	ID        int64     `json:"id"`
	Triangle  string    `json:"triangle"`
	BidA      float64   `json:"bid_a"`
	BidB      float64   `json:"bid_b"`
	BidC      float64   `json:"bid_c"`
	Rate      float64   `json:"rate"`
	Regime    Regime    `json:"regime"`
	SampledAt time.Time `json:"sampled_at"`
}

// QuoteUpdate is the monitor state captured by one applied quote. Sample is
// zero and Rate is 0 until every leg has a bid.
type QuoteUpdate struct {
	Signals  []ArbitrageSignal
	Rate     float64
	Sample   RateSample
	Snapshot TriangleSnapshot
}

// TriangleSnapshot is the monitor state exposed to readers.
type TriangleSnapshot struct {
	Triangle  Triangle           `json:"triangle"`
	Bids      map[string]float64 `json:"bids"`
	Rate      float64            `json:"rate"`
	Regime    Regime             `json:"regime"`
	Threshold float64            `json:"threshold"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Complete reports whether every leg has a recorded bid.
func (s TriangleSnapshot) Complete() bool {
	for _, leg := range s.Triangle.Legs() {
		if _, ok := s.Bids[leg]; !ok {
			return false
		}
	}
	return true
}

type SignalFilter struct {
	InstrumentID string
	Direction    Direction
	Limit        int
}
