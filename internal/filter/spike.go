package filter

import (
	"math"
	"strings"
	"sync"

	"fx-triangle-watch/internal/domain"

	goiforest "github.com/narumiruna/go-iforest/pkg/iforest"
)

type SpikeOptions struct {
	// Window is the number of log returns kept per symbol and the refit cadence.
	Window int
	// Threshold is the isolation forest anomaly score above which a tick is a spike candidate.
	Threshold float64
	// MinZScore is the minimum return deviation, in window standard deviations,
	// for a candidate to be rejected.
	MinZScore float64
	NumTrees  int
	// ReanchorAfter is the number of consecutive rejections at one consistent
	// level after which the filter treats the move as a level shift, accepts it
	// and relearns the symbol from scratch.
	ReanchorAfter int
}

func DefaultSpikeOptions() SpikeOptions {
	return SpikeOptions{
		Window:    128,
		Threshold: 0.6,
		MinZScore:     4,
		NumTrees:      100,
		ReanchorAfter: 8,
	}
}

// SpikeFilter rejects ticks whose price jump is an outlier against the recent
// return distribution of the same symbol and tick kind. Every tick passes until
// a series has a full window of returns.
type SpikeFilter struct {
	opts SpikeOptions

	mu     sync.Mutex
	series map[seriesKey]*spikeState
}

type seriesKey struct {
	symbol string
	kind   domain.TickKind
}

type spikeState struct {
	lastPrice float64
	returns   []float64
	model     *returnModel
	sinceFit  int

	// rejected counts consecutive rejections clustered around pending.
	rejected int
	pending  float64
}

type returnModel struct {
	forest *goiforest.IsolationForest
	mean   float64
	std    float64
}

func NewSpikeFilter(opts SpikeOptions) *SpikeFilter {
	def := DefaultSpikeOptions()
	if opts.Window < 8 {
		opts.Window = def.Window
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = def.Threshold
	}
	if opts.MinZScore <= 0 {
		opts.MinZScore = def.MinZScore
	}
	if opts.NumTrees <= 0 {
		opts.NumTrees = def.NumTrees
	}
	if opts.ReanchorAfter <= 0 {
		opts.ReanchorAfter = def.ReanchorAfter
	}
	return &SpikeFilter{opts: opts, series: make(map[seriesKey]*spikeState)}
}

func (f *SpikeFilter) Accepts(tick domain.Tick) bool {
	price := tick.ReferencePrice()
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := seriesKey{symbol: strings.TrimSpace(tick.Symbol), kind: tick.Kind}
	st, ok := f.series[key]
	if !ok {
		f.series[key] = &spikeState{lastPrice: price}
		return true
	}

	r := math.Log(price / st.lastPrice)
	if st.model != nil && st.model.isSpike(r, f.opts) {
		if st.rejected > 0 && st.model.isSpike(math.Log(price/st.pending), f.opts) {
			st.rejected = 0
		}
		st.rejected++
		st.pending = price
		if st.rejected < f.opts.ReanchorAfter {
			return false
		}
		f.series[key] = &spikeState{lastPrice: price}
		return true
	}

	st.rejected = 0
	st.lastPrice = price
	st.returns = append(st.returns, r)
	if len(st.returns) > f.opts.Window {
		st.returns = st.returns[len(st.returns)-f.opts.Window:]
	}
	st.sinceFit++
	if len(st.returns) == f.opts.Window && (st.model == nil || st.sinceFit >= f.opts.Window) {
		st.model = fitReturnModel(st.returns, f.opts)
		st.sinceFit = 0
	}
	return true
}

// Warm reports whether a model has been fit for the quotes of symbol.
func (f *SpikeFilter) Warm(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.series[seriesKey{symbol: strings.TrimSpace(symbol), kind: domain.TickQuote}]
	return ok && st.model != nil
}

func fitReturnModel(returns []float64, opts SpikeOptions) *returnModel {
	mean, std := meanStd(returns)
	samples := make([][]float64, len(returns))
	for i, r := range returns {
		samples[i] = []float64{(r - mean) / std}
	}
	forest := goiforest.NewWithOptions(goiforest.Options{
		DetectionType: goiforest.DetectionTypeThreshold,
		Threshold:     opts.Threshold,
		NumTrees:      opts.NumTrees,
		SampleSize:    min(256, len(samples)),
	})
	forest.Fit(samples)
	return &returnModel{forest: forest, mean: mean, std: std}
}

func (m *returnModel) isSpike(r float64, opts SpikeOptions) bool {
	z := (r - m.mean) / m.std
	if math.Abs(z) < opts.MinZScore {
		return false
	}
	scores := m.forest.Score([][]float64{{z}})
	if len(scores) == 0 || math.IsNaN(scores[0]) {
		return false
	}
	return scores[0] > opts.Threshold
}

func meanStd(xs []float64) (float64, float64) {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(xs)))
	if std == 0 {
		std = 1
	}
	return mean, std
}
