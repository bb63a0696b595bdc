package signal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultThresholdHigh = 1.00015
	DefaultMagnitude     = 0.0001
	DefaultValidFor      = 5 * time.Second
)

var (
	ErrNoLegs       = errors.New("triangle requires exactly three legs")
	ErrBlankLeg     = errors.New("triangle leg must not be blank")
	ErrDuplicateLeg = errors.New("triangle legs must be distinct")
	ErrThreshold    = errors.New("invalid rate threshold")
	ErrMagnitude    = errors.New("signal magnitude must be positive")
	ErrValidity     = errors.New("signal validity must be positive")
	ErrLoopMismatch = errors.New("legs do not form a closed currency loop")
)

type Config struct {
	Triangle      domain.Triangle
	ThresholdHigh float64
	// ThresholdLow defaults to 1/ThresholdHigh when zero.
	ThresholdLow float64
	Magnitude    float64
	ValidFor     time.Duration
	Symmetric    bool
	ValidateLoop bool
}

func DefaultConfig(tri domain.Triangle) Config {
	return Config{
		Triangle:      tri,
		ThresholdHigh: DefaultThresholdHigh,
		Magnitude:     DefaultMagnitude,
		ValidFor:      DefaultValidFor,
	}
}

// ParseLegs splits a comma separated leg list such as "EURUSD,EURGBP,GBPUSD".
func ParseLegs(raw string) (domain.Triangle, error) {
	parts := strings.Split(raw, ",")
	legs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			legs = append(legs, p)
		}
	}
	if len(legs) != 3 {
		return domain.Triangle{}, fmt.Errorf("%w: got %d", ErrNoLegs, len(legs))
	}
	return domain.Triangle{LegA: legs[0], LegB: legs[1], LegC: legs[2]}, nil
}

func (c Config) lowThreshold() float64 {
	if c.ThresholdLow > 0 {
		return c.ThresholdLow
	}
	return 1 / c.ThresholdHigh
}

func (c Config) Validate() error {
	seen := make(map[string]struct{}, 3)
	for _, leg := range c.Triangle.Legs() {
		if strings.TrimSpace(leg) == "" {
			return ErrBlankLeg
		}
		if _, dup := seen[leg]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLeg, leg)
		}
		seen[leg] = struct{}{}
	}
	if math.IsNaN(c.ThresholdHigh) || c.ThresholdHigh <= 1 {
		return fmt.Errorf("%w: high threshold %v must exceed 1", ErrThreshold, c.ThresholdHigh)
	}
	if c.ThresholdLow < 0 || c.ThresholdLow >= 1 {
		return fmt.Errorf("%w: low threshold %v must be in (0, 1)", ErrThreshold, c.ThresholdLow)
	}
	if !(c.Magnitude > 0) {
		return ErrMagnitude
	}
	if c.ValidFor <= 0 {
		return ErrValidity
	}
	if c.ValidateLoop {
		if err := validateLoop(c.Triangle); err != nil {
			return err
		}
	}
	return nil
}

// validateLoop checks six-letter FX codes decompose as A=X/Y, B=X/Z, C=Z/Y.
func validateLoop(tri domain.Triangle) error {
	a, okA := splitPair(tri.LegA)
	b, okB := splitPair(tri.LegB)
	c, okC := splitPair(tri.LegC)
	if !okA || !okB || !okC {
		return fmt.Errorf("%w: %s is not made of six-letter currency pairs", ErrLoopMismatch, tri)
	}
	if a[0] != b[0] || b[1] != c[0] || c[1] != a[1] {
		return fmt.Errorf("%w: %s", ErrLoopMismatch, tri)
	}
	return nil
}

func splitPair(code string) ([2]string, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '_', '-', '.':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(code)))
	if len(clean) != 6 {
		return [2]string{}, false
	}
	for _, r := range clean {
		if r < 'A' || r > 'Z' {
			return [2]string{}, false
		}
	}
	return [2]string{clean[:3], clean[3:]}, true
}

// TriangleMonitor tracks the latest bid of each leg and emits a group of three
// signals whenever the cross rate leaves the configured band.
type TriangleMonitor struct {
	cfg        Config
	now        func() time.Time
	newGroupID func() uuid.UUID

	mu        sync.Mutex
	quotes    map[string]domain.QuoteObservation
	rate      float64
	regime    domain.Regime
	updatedAt time.Time
}

func NewTriangleMonitor(cfg Config, now func() time.Time) (*TriangleMonitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &TriangleMonitor{
		cfg:        cfg,
		now:        now,
		newGroupID: uuid.New,
		quotes:     make(map[string]domain.QuoteObservation, 3),
		regime:     domain.RegimeUnknown,
	}, nil
}

func (m *TriangleMonitor) Config() Config {
	return m.cfg
}

// Thresholds returns the upper and lower regime boundaries.
func (m *TriangleMonitor) Thresholds() (high, low float64) {
	return m.cfg.ThresholdHigh, m.cfg.lowThreshold()
}

func (m *TriangleMonitor) Triangle() domain.Triangle {
	return m.cfg.Triangle
}

// Tracks reports whether instrumentID is one of the monitored legs.
func (m *TriangleMonitor) Tracks(instrumentID string) bool {
	switch instrumentID {
	case m.cfg.Triangle.LegA, m.cfg.Triangle.LegB, m.cfg.Triangle.LegC:
		return true
	}
	return false
}

// OnQuoteUpdate records the bid for instrumentID and recomputes the cross rate.
// Unknown instruments and non-positive or non-finite bids are ignored and yield
// a zero rate. The rate is returned whenever all three legs are known.
func (m *TriangleMonitor) OnQuoteUpdate(instrumentID string, bid float64) ([]domain.ArbitrageSignal, float64) {
	u, _ := m.Apply(instrumentID, bid)
	return u.Signals, u.Rate
}

// Apply is OnQuoteUpdate that also returns the sample and snapshot taken under
// the same lock as the recomputation. ok is false when the quote was ignored.
// A bid that would make the cross rate non-finite is ignored as well, and the
// previous bid for the leg is kept.
func (m *TriangleMonitor) Apply(instrumentID string, bid float64) (domain.QuoteUpdate, bool) {
	if !m.Tracks(instrumentID) || !validPrice(bid) {
		return domain.QuoteUpdate{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	prev, hadPrev := m.quotes[instrumentID]
	m.quotes[instrumentID] = domain.QuoteObservation{InstrumentID: instrumentID, BidPrice: bid, Time: now}

	rate, complete := m.rateLocked()
	if complete && !validPrice(rate) {
		if hadPrev {
			m.quotes[instrumentID] = prev
		} else {
			delete(m.quotes, instrumentID)
		}
		return domain.QuoteUpdate{}, false
	}

	m.updatedAt = now
	if !complete {
		return domain.QuoteUpdate{Snapshot: m.snapshotLocked()}, true
	}
	m.rate = rate

	var signals []domain.ArbitrageSignal
	tri := m.cfg.Triangle
	switch {
	case rate > m.cfg.ThresholdHigh:
		m.regime = domain.RegimeAbove
		signals = m.group(now, rate,
			leg{tri.LegA, domain.DirectionUp},
			leg{tri.LegB, domain.DirectionDown},
			leg{tri.LegC, domain.DirectionUp},
		)
	case rate < m.cfg.lowThreshold():
		m.regime = domain.RegimeBelow
		if m.cfg.Symmetric {
			signals = m.group(now, rate,
				leg{tri.LegA, domain.DirectionDown},
				leg{tri.LegB, domain.DirectionUp},
				leg{tri.LegC, domain.DirectionDown},
			)
		}
	default:
		m.regime = domain.RegimeInside
	}

	sample, _ := m.sampleLocked()
	return domain.QuoteUpdate{
		Signals:  signals,
		Rate:     rate,
		Sample:   sample,
		Snapshot: m.snapshotLocked(),
	}, true
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func (m *TriangleMonitor) rateLocked() (float64, bool) {
	a, okA := m.quotes[m.cfg.Triangle.LegA]
	b, okB := m.quotes[m.cfg.Triangle.LegB]
	c, okC := m.quotes[m.cfg.Triangle.LegC]
	if !okA || !okB || !okC {
		return 0, false
	}
	return CrossRate(a.BidPrice, b.BidPrice, c.BidPrice), true
}

// CrossRate is bidA * (1/bidB) * (1/bidC).
func CrossRate(bidA, bidB, bidC float64) float64 {
	return bidA * (1 / bidB) * (1 / bidC)
}

type leg struct {
	instrument string
	direction  domain.Direction
}

func (m *TriangleMonitor) group(now time.Time, rate float64, legs ...leg) []domain.ArbitrageSignal {
	groupID := m.newGroupID()
	out := make([]domain.ArbitrageSignal, 0, len(legs))
	for _, l := range legs {
		out = append(out, domain.ArbitrageSignal{
			GroupID:      groupID,
			InstrumentID: l.instrument,
			Direction:    l.direction,
			Magnitude:    m.cfg.Magnitude,
			ValidFor:     m.cfg.ValidFor,
			Rate:         rate,
			DetectedAt:   now,
		})
	}
	return out
}

// Snapshot returns a copy of the current monitor state.
func (m *TriangleMonitor) Snapshot() domain.TriangleSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *TriangleMonitor) snapshotLocked() domain.TriangleSnapshot {
	bids := make(map[string]float64, len(m.quotes))
	for id, q := range m.quotes {
		bids[id] = q.BidPrice
	}
	return domain.TriangleSnapshot{
		Triangle:  m.cfg.Triangle,
		Bids:      bids,
		Rate:      m.rate,
		Regime:    m.regime,
		Threshold: m.cfg.ThresholdHigh,
		UpdatedAt: m.updatedAt,
	}
}

// Sample converts the current state into a persisted rate sample. ok is false
// until every leg has a bid.
func (m *TriangleMonitor) Sample() (domain.RateSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleLocked()
}

func (m *TriangleMonitor) sampleLocked() (domain.RateSample, bool) {
	if _, ok := m.rateLocked(); !ok {
		return domain.RateSample{}, false
	}
	tri := m.cfg.Triangle
	return domain.RateSample{
		Triangle:  tri.String(),
		BidA:      m.quotes[tri.LegA].BidPrice,
		BidB:      m.quotes[tri.LegB].BidPrice,
		BidC:      m.quotes[tri.LegC].BidPrice,
		Rate:      m.rate,
		Regime:    m.regime,
		SampledAt: m.updatedAt,
	}, true
}
