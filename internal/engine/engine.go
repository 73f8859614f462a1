// Package engine converts candle series and a mark price into directional signals.
package engine

import (
	"math"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/indicator"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

// Price source labels recorded on every signal so the dashboard can tell a live mark
// price apart from a candle-close fallback.
const (
	SourceMark    = "MARK"
	SourceClose4h = "CLOSE_4H"
	SourceClose1h = "CLOSE_1H"
	SourceNone    = "NONE"
)

const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	rsiPeriod     = 14
	atrPeriod     = 14

	// minDirectionBars is the warm-up needed before a timeframe may vote a direction.
	minDirectionBars = 60
	// minReplayBars is the sample floor below which confidence stays at the neutral prior.
	minReplayBars = 120
	// targetATRMultiple sizes the target distance from the current price.
	targetATRMultiple = 1.5
	// adverseATRMultiple bounds the adverse excursion tolerated during the replay.
	adverseATRMultiple = 1.0
	// fallbackATRFraction substitutes a stable ATR when none is computable.
	fallbackATRFraction = 0.003
)

// Params carries the thresholds threaded into the engine by the scheduler.
type Params struct {
	GainMinPct       float64
	ConfidenceMinPct float64
	Lookahead        int
}

func (p Params) withDefaults() Params {
	if p.Lookahead <= 0 {
		p.Lookahead = 12
	}
	return p
}

// Engine builds signals from market data. It holds no mutable state and is safe to use
// from concurrent per-instrument goroutines.
type Engine struct {
	params Params
}

// New returns an engine with defaults applied to the given params.
func New(params Params) *Engine {
	return &Engine{params: params.withDefaults()}
}

// Build maps one instrument's market data to a Signal. Malformed or missing data never
// returns an error; every failure path degrades to a NO_ENTRY signal.
func (e *Engine) Build(instrument string, h1, h4 []signal.Candle, markPrice float64) signal.Signal {
	h1 = sanitize(h1)
	h4 = sanitize(h4)

	current, source := resolvePrice(markPrice, h1, h4)
	sig := signal.Signal{
		Instrument:  instrument,
		Side:        signal.NoEntry,
		PriceSource: source,
	}
	if current <= 0 {
		return sig
	}
	sig.EntryPrice = current
	sig.CurrentPrice = current
	sig.TargetPrice = current

	vote1, s1 := direction(signal.Closes(h1))
	vote4, s4 := direction(signal.Closes(h4))

	// Cross-timeframe agreement is the primary false-positive filter: both votes must
	// match and be directional, otherwise the instrument sits out this cycle.
	side := signal.NoEntry
	strength := 0.0
	if vote1 == vote4 && vote1.Tradeable() {
		side = vote1
		strength = math.Min(s1, s4)
	}
	if side == signal.NoEntry {
		return sig
	}

	atrVal := atrLast(h4)
	if atrVal <= 0 {
		atrVal = atrLast(h1)
	}
	if atrVal <= 0 || math.IsNaN(atrVal) || math.IsInf(atrVal, 0) {
		atrVal = current * fallbackATRFraction
	}

	dist := targetATRMultiple * atrVal
	if side == signal.Long {
		sig.TargetPrice = current + dist
	} else {
		sig.TargetPrice = math.Max(1e-12, current-dist)
	}
	sig.GainPct = math.Abs(sig.TargetPrice-current) / current * 100

	replay, tfHours := h4, 4.0
	if len(replay) == 0 {
		replay, tfHours = h1, 1.0
	}
	sig.ConfidencePct = e.confidence(replay, side, dist, atrVal)

	// Gating: below either threshold the side flips to NO_ENTRY, but the already
	// computed numbers stay on the record for observability.
	if sig.GainPct < e.params.GainMinPct || sig.ConfidencePct < e.params.ConfidenceMinPct {
		return sig
	}

	sig.Side = side
	atrPct := atrVal / current
	sig.Risk = classifyRisk(atrPct)
	sig.Zone = classifyZone(strength)
	sig.Priority = classifyPriority(sig.ConfidencePct, sig.GainPct, sig.Risk)
	sig.Horizon = horizon(replay, tfHours, dist/current, atrPct)
	return sig
}

// sanitize drops malformed bars instead of failing the whole series.
func sanitize(candles []signal.Candle) []signal.Candle {
	out := candles[:0:0]
	for _, c := range candles {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// resolvePrice prefers the exchange mark price and falls back to the freshest candle
// close so a failed ticker fetch does not blank the whole row.
func resolvePrice(mark float64, h1, h4 []signal.Candle) (float64, string) {
	if mark > 0 && !math.IsNaN(mark) && !math.IsInf(mark, 0) {
		return mark, SourceMark
	}
	if len(h4) > 0 {
		return h4[len(h4)-1].Close, SourceClose4h
	}
	if len(h1) > 0 {
		return h1[len(h1)-1].Close, SourceClose1h
	}
	return 0, SourceNone
}

// direction votes LONG/SHORT/NO_ENTRY for one timeframe and scores the vote strength
// in [0,1] by how far RSI and the EMA gap clear their thresholds.
func direction(closes []float64) (signal.Side, float64) {
	if len(closes) < minDirectionBars {
		return signal.NoEntry, 0
	}
	e20 := indicator.EMA(closes, emaFastPeriod)
	e50 := indicator.EMA(closes, emaSlowPeriod)
	rs := indicator.RSI(closes, rsiPeriod)
	if len(e20) == 0 || len(e50) == 0 || len(rs) == 0 {
		return signal.NoEntry, 0
	}

	ema20 := e20[len(e20)-1]
	ema50 := e50[len(e50)-1]
	rsi := rs[len(rs)-1]
	last := closes[len(closes)-1]

	if ema20 > ema50 && rsi >= 55 {
		strength := (rsi-55)/20 + (ema20-ema50)/math.Max(1e-9, last*0.01)
		return signal.Long, clamp01(strength)
	}
	if ema20 < ema50 && rsi <= 45 {
		strength := (45-rsi)/20 + (ema50-ema20)/math.Max(1e-9, last*0.01)
		return signal.Short, clamp01(strength)
	}
	return signal.NoEntry, 0
}

// confidence replays the entry rule over a trailing window of historical bars: a trial
// succeeds when the favorable excursion reaches the target distance before the adverse
// excursion breaches one ATR. Too little history yields the neutral 50 prior.
func (e *Engine) confidence(candles []signal.Candle, side signal.Side, targetDist, atrVal float64) float64 {
	if !side.Tradeable() {
		return 0
	}
	n := len(candles)
	if n < minReplayBars {
		return 50
	}

	lookahead := e.params.Lookahead
	maeLimit := adverseATRMultiple * atrVal
	successes, total := 0, 0

	start := n - 180
	if start < 60 {
		start = 60
	}
	end := n - lookahead - 1
	for i := start; i < end; i++ {
		entry := candles[i].Close
		window := candles[i+1 : i+1+lookahead]

		maxHigh, minLow := window[0].High, window[0].Low
		for _, c := range window[1:] {
			maxHigh = math.Max(maxHigh, c.High)
			minLow = math.Min(minLow, c.Low)
		}

		var mfe, mae float64
		if side == signal.Long {
			mfe = maxHigh - entry
			mae = entry - minLow
		} else {
			mfe = entry - minLow
			mae = maxHigh - entry
		}
		if mae <= maeLimit && mfe >= targetDist {
			successes++
		}
		total++
	}
	if total <= 0 {
		return 50
	}
	return clamp(float64(successes)/float64(total)*100, 0, 100)
}

// atrLast returns the latest ATR of the series, or 0 when not computable.
func atrLast(candles []signal.Candle) float64 {
	if len(candles) < atrPeriod+2 {
		return 0
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	out := indicator.ATR(highs, lows, closes, atrPeriod)
	if len(out) == 0 {
		return 0
	}
	return out[len(out)-1]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }
