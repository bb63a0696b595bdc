package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fx-triangle-watch/internal/domain"
)

// FormatLeg renders one leg of the triangle with its latest bid.
func FormatLeg(symbol string, bids map[string]float64) string {
	bid, ok := bids[symbol]
	if !ok {
		return fmt.Sprintf("%-10s %14s", symbol, SubtextStyle.Render("waiting"))
	}
	return fmt.Sprintf("%-10s %14s", symbol, formatRate(bid))
}

// FormatSignal renders one leg signal as a single line.
func FormatSignal(s domain.ArbitrageSignal) string {
	return fmt.Sprintf("#%-5d %-10s %s %8.4f%%  rate %s  %s  valid %s",
		s.ID,
		s.InstrumentID,
		renderDirection(s.Direction),
		s.Magnitude*100,
		formatRate(s.Rate),
		s.DetectedAt.Format(time.TimeOnly),
		s.ValidFor,
	)
}

// RenderRegime colours the regime label.
func RenderRegime(r domain.Regime) string {
	label := strings.ToUpper(string(r))
	switch r {
	case domain.RegimeAbove:
		return RegimeAboveStyle.Render(label)
	case domain.RegimeBelow:
		return RegimeBelowStyle.Render(label)
	case domain.RegimeInside:
		return RegimeInsideStyle.Render(label)
	default:
		return RegimeUnknownStyle.Render(strings.ToUpper(string(domain.RegimeUnknown)))
	}
}

// RenderDeviationGauge draws how far the rate sits from parity relative to the
// trigger distance (threshold - 1). A full bar means the threshold is crossed.
func RenderDeviationGauge(rate, threshold float64, width int) string {
	if width <= 0 {
		width = 20
	}
	if rate <= 0 || threshold <= 1 {
		return SubtextStyle.Render(strings.Repeat("░", width) + " n/a")
	}
	deviation := rate - 1
	fraction := math.Abs(deviation) / (threshold - 1)
	filled := int(math.Round(math.Min(fraction, 1) * float64(width)))

	style := GaugeCalmStyle
	switch {
	case fraction >= 1:
		style = GaugeTriggerStyle
	case fraction >= 0.5:
		style = GaugeWarnStyle
	}

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %+.4f%%", bar, deviation*100)
}

func renderDirection(d domain.Direction) string {
	label := fmt.Sprintf("%-4s", strings.ToUpper(string(d)))
	if d == domain.DirectionUp {
		return DirectionUpStyle.Render(label)
	}
	return DirectionDownStyle.Render(label)
}

func formatRate(v float64) string {
	if v <= 0 || math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", v)
}

func formatAge(now, at time.Time) string {
	if at.IsZero() {
		return "never"
	}
	age := now.Sub(at).Truncate(time.Second)
	if age < time.Second {
		return "just now"
	}
	return age.String() + " ago"
}
