// Package indicator provides the pure indicator math used by the signal engine.
//
// All functions are stateless and deterministic. A series shorter than the warm-up
// length yields a nil result instead of an error, so callers must branch on emptiness
// before indexing.
package indicator

import "math"

// EMA computes the exponential moving average, seeded with the simple average of the
// first period values. Result[i] corresponds to values[period-1+i].
func EMA(values []float64, period int) []float64 {
	if period <= 1 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	prev := sum / float64(period)
	out = append(out, prev)

	for _, v := range values[period:] {
		prev += (v - prev) * k
		out = append(out, prev)
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index. When the smoothed average
// loss is zero the value is 100, avoiding a divide by zero.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}
	gains := make([]float64, 0, len(values)-1)
	losses := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gains = append(gains, math.Max(0, change))
		losses = append(losses, math.Max(0, -change))
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	rsi := func(gain, loss float64) float64 {
		if loss == 0 {
			return 100
		}
		return 100 - 100/(1+gain/loss)
	}

	out := make([]float64, 0, len(gains)-period+1)
	out = append(out, rsi(avgGain, avgLoss))
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out = append(out, rsi(avgGain, avgLoss))
	}
	return out
}

// ATR computes the average true range with Wilder smoothing. The first value is the
// simple average of the first period true ranges.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return nil
	}
	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trs = append(trs, tr)
	}

	var sum float64
	for _, tr := range trs[:period] {
		sum += tr
	}
	prev := sum / float64(period)

	out := make([]float64, 0, len(trs)-period+1)
	out = append(out, prev)
	for _, tr := range trs[period:] {
		prev = (prev*float64(period-1) + tr) / float64(period)
		out = append(out, prev)
	}
	return out
}
