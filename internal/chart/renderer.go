package chart

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"fx-triangle-watch/internal/domain"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartSamples    = 500
	MimeType           = "image/png"
)

var ErrTooFewSamples = errors.New("need at least 2 rate samples to render chart")

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colRate       = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colParity     = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colHigh       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colLow        = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colAbove      = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colBelow      = color.RGBA{R: 18, G: 140, B: 126, A: 255}
)

// Bands are the monitor thresholds drawn across the rate panel. Low may be
// zero when the monitor is not symmetric.
type Bands struct {
	High float64
	Low  float64
}

type Renderer struct {
	width  int
	height int
}

func NewRenderer() *Renderer {
	return &Renderer{width: defaultChartWidth, height: defaultChartHeight}
}

// RenderRateChart draws the cross rate over time with the threshold bands in
// the main panel and the signed deviation from parity as bars below. Samples
// may arrive in any order.
func (r *Renderer) RenderRateChart(samples []domain.RateSample, bands Bands) ([]byte, error) {
	series := normalizeSamples(samples)
	if len(series) < 2 {
		return nil, ErrTooFewSamples
	}
	if len(series) > maxChartSamples {
		series = series[len(series)-maxChartSamples:]
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	fillRect(img, img.Bounds(), colBackground)

	mainRect := image.Rect(60, 20, r.width-20, (r.height*72)/100)
	auxRect := image.Rect(60, mainRect.Max.Y+16, r.width-20, r.height-30)
	drawGrid(img, mainRect, 8, 6)
	drawGrid(img, auxRect, 8, 3)

	rates := make([]float64, len(series))
	deviations := make([]float64, len(series))
	for i, s := range series {
		rates[i] = s.Rate
		deviations[i] = s.Rate - 1
	}

	minV, maxV := finiteBounds(append(rates, bandValues(bands)...))
	pad := (maxV - minV) * 0.05
	minV, maxV = minV-pad, maxV+pad

	drawHorizontalValueLine(img, mainRect, 1, minV, maxV, colParity)
	if bands.High > 0 {
		drawHorizontalValueLine(img, mainRect, bands.High, minV, maxV, colHigh)
	}
	if bands.Low > 0 {
		drawHorizontalValueLine(img, mainRect, bands.Low, minV, maxV, colLow)
	}
	drawSeries(img, mainRect, rates, minV, maxV, colRate)
	drawRegimeMarkers(img, mainRect, series, minV, maxV)

	drawDeviationBars(img, auxRect, deviations)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bandValues(b Bands) []float64 {
	out := make([]float64, 0, 2)
	if b.High > 0 {
		out = append(out, b.High)
	}
	if b.Low > 0 {
		out = append(out, b.Low)
	}
	return out
}

func normalizeSamples(in []domain.RateSample) []domain.RateSample {
	out := make([]domain.RateSample, 0, len(in))
	for _, s := range in {
		if s.Rate > 0 && !math.IsInf(s.Rate, 0) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SampledAt.Before(out[j].SampledAt)
	})
	return out
}

// drawRegimeMarkers ticks the top edge wherever a sample sat outside the band.
func drawRegimeMarkers(img *image.RGBA, rect image.Rectangle, series []domain.RateSample, minV, maxV float64) {
	for i, s := range series {
		var col color.RGBA
		switch s.Regime {
		case domain.RegimeAbove:
			col = colAbove
		case domain.RegimeBelow:
			col = colBelow
		default:
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(s.Rate, minV, maxV, rect)
		fillRect(img, image.Rect(x-2, y-2, x+3, y+3), col)
	}
}

func drawDeviationBars(img *image.RGBA, rect image.Rectangle, deviations []float64) {
	minV, maxV := finiteBounds(deviations)
	bound := math.Max(math.Abs(minV), math.Abs(maxV))
	if bound == 0 {
		bound = 1
	}
	drawHorizontalValueLine(img, rect, 0, -bound, bound, colParity)

	barW := max(1, (rect.Dx()-10)/len(deviations)-1)
	zeroY := mapValueToY(0, -bound, bound, rect)
	for i, v := range deviations {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		col := colBelow
		if v > 0 {
			col = colAbove
		}
		x := mapIndexToX(i, len(deviations), rect)
		y := mapValueToY(v, -bound, bound, rect)
		fillRect(img, image.Rect(x-barW/2, min(y, zeroY), x+barW/2+1, max(y, zeroY)+1), col)
	}
}

func drawSeries(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	lastX, lastY := -1, -1
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastX, lastY = -1, -1
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		if lastX >= 0 {
			drawLine(img, lastX, lastY, x, y, col)
		}
		lastX, lastY = x, y
	}
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func drawHorizontalValueLine(img *image.RGBA, rect image.Rectangle, value, minV, maxV float64, col color.RGBA) {
	y := mapValueToY(value, minV, maxV, rect)
	drawLine(img, rect.Min.X, y, rect.Max.X, y, col)
}

func mapIndexToX(idx, total int, rect image.Rectangle) int {
	if total <= 1 {
		return rect.Min.X
	}
	return rect.Min.X + (idx*(rect.Dx()-1))/(total-1)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

func finiteBounds(values []float64) (float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if math.IsInf(minV, 1) || math.IsInf(maxV, -1) {
		return 0, 1
	}
	if minV == maxV {
		return minV - 1e-6, maxV + 1e-6
	}
	return minV, maxV
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// drawLine is Bresenham.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
