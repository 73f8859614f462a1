// Package audit opens a virtual position per emitted signal and follows live price
// until each one resolves as WIN, LOSS, or EXPIRED.
package audit

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

// CloseReason names the condition that resolved a position.
type CloseReason string

const (
	ReasonTarget       CloseReason = "TARGET"
	ReasonInvalidation CloseReason = "INVALIDATION"
	ReasonTTL          CloseReason = "TTL"
)

// Result is the terminal outcome of a position.
type Result string

const (
	ResultWin     Result = "WIN"
	ResultLoss    Result = "LOSS"
	ResultExpired Result = "EXPIRED"
)

// invalidationRatio derives the invalidation distance from the target distance:
// target = entry ± 1.5·ATR, invalidation = entry ∓ 1.0·ATR.
const invalidationRatio = 1.5

// Position is one open virtual trade. It mutates every poll until it closes.
type Position struct {
	ID            string      `json:"audit_id"`
	Instrument    string      `json:"par"`
	Side          signal.Side `json:"side"`
	EntryPrice    float64     `json:"entrada"`
	TargetPrice   float64     `json:"alvo"`
	Invalidation  float64     `json:"invalidado"`
	GainPct       float64     `json:"ganho_pct"`
	ConfidencePct float64     `json:"assert_pct"`
	Horizon       string      `json:"prazo"`
	PriceSource   string      `json:"price_source"`
	OpenedAt      time.Time   `json:"opened_at"`
	TTLDeadline   time.Time   `json:"ttl_expira_em"`
	MFEPct        float64     `json:"mfe_pct"`
	MAEPct        float64     `json:"mae_pct"`
}

// Closed is the immutable snapshot appended to the closed log. Never rewritten.
type Closed struct {
	Position
	ClosedAt   time.Time   `json:"closed_at"`
	Reason     CloseReason `json:"hit"`
	Result     Result      `json:"result"`
	ClosePrice float64     `json:"close_price"`
	PnLPct     float64     `json:"pnl_pct_real"`
}

// PositionID hashes the identity fields of a signal into a deterministic id, so
// re-ingesting the same batch can never duplicate a position.
func PositionID(instrument string, side signal.Side, entry, target float64, ttl time.Time) string {
	raw := fmt.Sprintf("%s|%s|%.10f|%.10f|%s", instrument, side, entry, target, ttl.UTC().Format(time.RFC3339))
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// PnLPct computes signed percent P&L for the side at the given price.
func PnLPct(side signal.Side, entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	if side == signal.Long {
		return (price - entry) / entry * 100
	}
	return (entry - price) / entry * 100
}

// Tracker holds the open-position set between poll cycles.
type Tracker struct {
	open map[string]*Position
}

// NewTracker restores a tracker from a previously persisted open set.
func NewTracker(open []Position) *Tracker {
	t := &Tracker{open: make(map[string]*Position, len(open))}
	for i := range open {
		p := open[i]
		if p.ID == "" {
			continue
		}
		t.open[p.ID] = &p
	}
	return t
}

// Open returns the open positions ordered by id for stable persistence.
func (t *Tracker) Open() []Position {
	out := make([]Position, 0, len(t.open))
	for _, p := range t.open {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenCount reports how many positions are currently tracked.
func (t *Tracker) OpenCount() int { return len(t.open) }

// Ingest opens a position for every tradeable signal whose id is not already present.
// It returns the number of newly opened positions.
func (t *Tracker) Ingest(signals []signal.Signal, now time.Time) int {
	opened := 0
	for _, s := range signals {
		if !s.Side.Tradeable() || s.CurrentPrice <= 0 || s.TargetPrice <= 0 || s.TTLDeadline == "" {
			continue
		}
		ttl, err := time.Parse(time.RFC3339, s.TTLDeadline)
		if err != nil {
			continue
		}

		id := PositionID(s.Instrument, s.Side, s.CurrentPrice, s.TargetPrice, ttl)
		if _, exists := t.open[id]; exists {
			continue
		}

		atr := math.Abs(s.TargetPrice-s.CurrentPrice) / invalidationRatio
		inv := s.CurrentPrice - atr
		if s.Side == signal.Short {
			inv = s.CurrentPrice + atr
		}

		t.open[id] = &Position{
			ID:            id,
			Instrument:    s.Instrument,
			Side:          s.Side,
			EntryPrice:    s.CurrentPrice,
			TargetPrice:   s.TargetPrice,
			Invalidation:  inv,
			GainPct:       s.GainPct,
			ConfidencePct: s.ConfidencePct,
			Horizon:       s.Horizon,
			PriceSource:   s.PriceSource,
			OpenedAt:      now,
			TTLDeadline:   ttl,
		}
		opened++
	}
	return opened
}

// Poll updates every open position against the given prices and returns the positions
// that closed this cycle. A missing or non-positive price leaves a position untouched
// so it is retried next cycle. Close conditions are checked target/invalidation first,
// TTL last.
func (t *Tracker) Poll(prices map[string]float64, now time.Time) []Closed {
	ids := make([]string, 0, len(t.open))
	for id := range t.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var closed []Closed
	for _, id := range ids {
		p := t.open[id]
		price, ok := prices[p.Instrument]
		if !ok || price <= 0 {
			continue
		}

		pnl := PnLPct(p.Side, p.EntryPrice, price)
		p.MFEPct = math.Max(p.MFEPct, pnl)
		p.MAEPct = math.Min(p.MAEPct, pnl)

		reason, done := checkClose(p, price, now)
		if !done {
			continue
		}
		closed = append(closed, Closed{
			Position:   *p,
			ClosedAt:   now,
			Reason:     reason,
			Result:     resultFor(reason),
			ClosePrice: price,
			PnLPct:     pnl,
		})
		delete(t.open, id)
	}
	return closed
}

// checkClose applies the transition rules in priority order.
func checkClose(p *Position, price float64, now time.Time) (CloseReason, bool) {
	if p.Side == signal.Long {
		if p.TargetPrice > 0 && price >= p.TargetPrice {
			return ReasonTarget, true
		}
		if p.Invalidation > 0 && price <= p.Invalidation {
			return ReasonInvalidation, true
		}
	} else {
		if p.TargetPrice > 0 && price <= p.TargetPrice {
			return ReasonTarget, true
		}
		if p.Invalidation > 0 && price >= p.Invalidation {
			return ReasonInvalidation, true
		}
	}
	if !p.TTLDeadline.IsZero() && !now.Before(p.TTLDeadline) {
		return ReasonTTL, true
	}
	return "", false
}

// resultFor maps a close reason to the terminal result. A TTL close is EXPIRED, not an
// automatic loss; its realized P&L sign stays on the record and feeds the aggregate
// TTL counters.
func resultFor(reason CloseReason) Result {
	switch reason {
	case ReasonTarget:
		return ResultWin
	case ReasonInvalidation:
		return ResultLoss
	default:
		return ResultExpired
	}
}
