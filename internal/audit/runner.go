package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/exchange"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/metrics"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/store"
)

// PriceSource answers live price lookups for the runner. A websocket stream satisfies
// it when running, the REST client is the fallback.
type PriceSource interface {
	Price(symbol string) (float64, bool)
}

// RunnerOptions wires a Runner.
type RunnerOptions struct {
	MinSamples int
	Location   *time.Location
}

// Runner executes one audit pass: ingest the latest ranked batch, poll open positions
// against live prices, log closes, and rewrite the open set and the aggregate summary.
type Runner struct {
	opts    RunnerOptions
	store   *store.Store
	client  exchange.Client
	stream  PriceSource
	tracker *Tracker
	log     zerolog.Logger
}

// openSnapshot is the persisted shape of the open-position set.
type openSnapshot struct {
	OK         bool       `json:"ok"`
	UpdatedUTC string     `json:"updated_utc"`
	Count      int        `json:"count"`
	Positions  []Position `json:"positions"`
}

// NewRunner restores the open set from disk and returns a ready runner. A missing open
// file is a cold start, not an error. The stream may be nil.
func NewRunner(opts RunnerOptions, st *store.Store, client exchange.Client, stream PriceSource, log zerolog.Logger) (*Runner, error) {
	var snap openSnapshot
	if err := st.ReadSnapshot(store.OpenFile, &snap); err != nil && err != store.ErrNotFound {
		return nil, err
	}
	r := &Runner{
		opts:    opts,
		store:   st,
		client:  client,
		stream:  stream,
		tracker: NewTracker(snap.Positions),
		log:     log,
	}
	metrics.PositionsOpen.Set(float64(r.tracker.OpenCount()))
	return r, nil
}

// Tracker exposes the underlying state machine, used by tests and the worker loop.
func (r *Runner) Tracker() *Tracker { return r.tracker }

// Cycle runs one audit pass at the given instant.
func (r *Runner) Cycle(ctx context.Context, now time.Time) error {
	var top signal.Batch
	switch err := r.store.ReadSnapshot(store.TopFile, &top); err {
	case nil:
		opened := r.tracker.Ingest(top.Items, now)
		if opened > 0 {
			r.log.Info().Int("opened", opened).Msg("new positions ingested")
		}
	case store.ErrNotFound:
		// Worker has not produced a batch yet; keep polling what is already open.
	default:
		return err
	}

	prices := r.fetchPrices(ctx)
	closed := r.tracker.Poll(prices, now)
	if len(closed) > 0 {
		records := make([]any, len(closed))
		for i, c := range closed {
			records[i] = c
			metrics.PositionsClosedTotal.WithLabelValues(string(c.Result)).Inc()
			r.log.Info().
				Str("id", c.ID).
				Str("coin", c.Instrument).
				Str("result", string(c.Result)).
				Float64("pnl_pct", c.PnLPct).
				Msg("position closed")
		}
		if err := r.store.AppendLog(store.ClosedFile, records...); err != nil {
			return err
		}
	}

	if err := r.persistOpen(now); err != nil {
		return err
	}
	if err := r.persistSummary(now); err != nil {
		return err
	}

	metrics.PositionsOpen.Set(float64(r.tracker.OpenCount()))
	metrics.CyclesTotal.WithLabelValues("audit").Inc()
	return nil
}

// fetchPrices resolves a price per open instrument, preferring the stream and falling
// back to REST. An instrument with no resolvable price is simply absent from the map.
func (r *Runner) fetchPrices(ctx context.Context) map[string]float64 {
	prices := make(map[string]float64)
	for _, p := range r.tracker.Open() {
		if _, done := prices[p.Instrument]; done {
			continue
		}
		symbol := exchange.Symbol(p.Instrument)
		if r.stream != nil {
			if v, ok := r.stream.Price(symbol); ok && v > 0 {
				prices[p.Instrument] = v
				continue
			}
		}
		v, err := r.client.MarkPrice(ctx, symbol)
		if err != nil {
			metrics.FetchErrorsTotal.WithLabelValues("mark").Inc()
			r.log.Warn().Err(err).Str("coin", p.Instrument).Msg("price unavailable, position held")
			continue
		}
		prices[p.Instrument] = v
	}
	return prices
}

func (r *Runner) persistOpen(now time.Time) error {
	open := r.tracker.Open()
	return r.store.WriteSnapshot(store.OpenFile, openSnapshot{
		OK:         true,
		UpdatedUTC: now.UTC().Format(time.RFC3339),
		Count:      len(open),
		Positions:  open,
	})
}

func (r *Runner) persistSummary(now time.Time) error {
	closed, err := store.ReadLog[Closed](r.store, store.ClosedFile)
	if err != nil {
		return err
	}
	summary := Stats(closed, r.tracker.OpenCount(), r.opts.MinSamples, r.opts.Location, now)
	return r.store.WriteSnapshot(store.SummaryFile, summary)
}
