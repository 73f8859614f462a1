package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

// classifyRisk tiers volatility by ATR as a fraction of price.
func classifyRisk(atrPct float64) signal.Tier {
	switch {
	case atrPct <= 0.02:
		return signal.TierLow
	case atrPct <= 0.05:
		return signal.TierMedium
	default:
		return signal.TierHigh
	}
}

// classifyZone tiers the direction-vote strength.
func classifyZone(strength float64) signal.Tier {
	switch {
	case strength >= 0.66:
		return signal.TierHigh
	case strength >= 0.33:
		return signal.TierMedium
	default:
		return signal.TierLow
	}
}

// classifyPriority combines confidence and gain into one actionability tier. A high
// risk tier demotes the score by a quarter before bucketing; gain saturates at 8%.
func classifyPriority(confidencePct, gainPct float64, risk signal.Tier) signal.Tier {
	score := 0.5*(confidencePct/100) + 0.5*math.Min(gainPct/8, 1)
	if risk == signal.TierHigh {
		score -= 0.25
	}
	switch {
	case score >= 0.65:
		return signal.TierHigh
	case score >= 0.40:
		return signal.TierMedium
	default:
		return signal.TierLow
	}
}

// horizon estimates how long price needs to travel the target distance, from the
// median per-bar true-range percent of the trailing window.
func horizon(candles []signal.Candle, tfHours, distPct, atrPct float64) string {
	medTR := medianTRPct(candles)
	if medTR <= 0 {
		medTR = atrPct
	}
	movePerHour := math.Max(1e-6, medTR/tfHours)
	return formatHours(distPct / movePerHour)
}

// medianTRPct returns the median true-range percent over the last 80 bars.
func medianTRPct(candles []signal.Candle) float64 {
	var trs []float64
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-prevClose), math.Abs(candles[i].Low-prevClose)))
		trs = append(trs, tr/math.Max(1e-9, prevClose))
	}
	if len(trs) > 80 {
		trs = trs[len(trs)-80:]
	}
	if len(trs) == 0 {
		return 0
	}
	sort.Float64s(trs)
	mid := len(trs) / 2
	if len(trs)%2 == 1 {
		return trs[mid]
	}
	return (trs[mid-1] + trs[mid]) / 2
}

// formatHours renders a human-scale duration: "45m" under an hour, "5.3h" above.
func formatHours(h float64) string {
	if h <= 0 {
		return "-"
	}
	if h < 1 {
		return fmt.Sprintf("%.0fm", h*60)
	}
	return fmt.Sprintf("%.1fh", h)
}
