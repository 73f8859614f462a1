// Package signal standardizes payloads shared between the signal engine, ranking, and audit layers.
package signal

import "time"

// Side is the trade direction carried by a Signal.
type Side string

const (
	// Long means the engine expects price to rise to the target.
	Long Side = "LONG"
	// Short means the engine expects price to fall to the target.
	Short Side = "SHORT"
	// NoEntry means no tradeable setup exists for this cycle.
	NoEntry Side = "NO_ENTRY"
)

// Tradeable reports whether the side opens a position.
func (s Side) Tradeable() bool { return s == Long || s == Short }

// Tier is a three-level ordinal used for risk, zone, and priority.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Candle is one OHLC bar. Series are ordered oldest to newest with a fixed timeframe.
type Candle struct {
	Open  float64 `json:"o"`
	High  float64 `json:"h"`
	Low   float64 `json:"l"`
	Close float64 `json:"c"`
}

// Valid reports whether the bar satisfies low <= open,close <= high with positive prices.
func (c Candle) Valid() bool {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	return c.Low <= c.Open && c.Open <= c.High && c.Low <= c.Close && c.Close <= c.High
}

// Closes extracts the close column from a candle series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Signal is one directional recommendation (or an explicit no-entry) per instrument per cycle.
//
// When Side is NO_ENTRY the qualitative tiers and the horizon are empty, but the numeric
// fields keep whatever was computed so downstream consumers never see a null where a
// number was derivable.
type Signal struct {
	Instrument    string  `json:"par"`
	Side          Side    `json:"side"`
	EntryPrice    float64 `json:"entrada"`
	CurrentPrice  float64 `json:"atual"`
	TargetPrice   float64 `json:"alvo"`
	GainPct       float64 `json:"ganho_pct"`
	ConfidencePct float64 `json:"assert_pct"`
	Horizon       string  `json:"prazo"`
	Zone          Tier    `json:"zona,omitempty"`
	Risk          Tier    `json:"risco,omitempty"`
	Priority      Tier    `json:"prioridade,omitempty"`
	PriceSource   string  `json:"price_source"`
	TTLDeadline   string  `json:"ttl_expira_em,omitempty"`
}

// Batch is the per-cycle envelope persisted for the dashboard.
type Batch struct {
	OK         bool     `json:"ok"`
	Service    string   `json:"service"`
	UpdatedUTC string   `json:"now_utc"`
	GainMinPct float64  `json:"gain_min_pct"`
	CoinsCount int      `json:"coins_count"`
	Items      []Signal `json:"items"`
	Count      int      `json:"count"`
	Skipped    []Skip   `json:"skipped,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Skip records an instrument dropped from a cycle and why, so a partial cycle stays observable.
type Skip struct {
	Instrument string `json:"par"`
	Reason     string `json:"reason"`
}

// NewBatch wraps a signal slice into a persisted envelope.
func NewBatch(service string, gainMinPct float64, coins int, items []Signal, skipped []Skip, now time.Time) Batch {
	return Batch{
		OK:         true,
		Service:    service,
		UpdatedUTC: now.UTC().Format(time.RFC3339),
		GainMinPct: gainMinPct,
		CoinsCount: coins,
		Items:      items,
		Count:      len(items),
		Skipped:    skipped,
	}
}
