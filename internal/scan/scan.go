// Package scan runs one signal cycle: fan out market data fetches across the coin
// universe, build a signal per coin, rank the survivors, and persist both batches.
package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/engine"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/exchange"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/metrics"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/rank"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/store"
)

// Options wires a Scanner.
type Options struct {
	Coins       []string
	CandleLimit int
	Concurrency int
	TTL         time.Duration
	Rank        rank.Options
}

func (o Options) withDefaults() Options {
	if o.CandleLimit <= 0 {
		o.CandleLimit = 200
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	return o
}

// Scanner evaluates the full coin universe once per cycle.
type Scanner struct {
	opts   Options
	client exchange.Client
	engine *engine.Engine
	store  *store.Store
	log    zerolog.Logger
}

// New builds a scanner around a market data client and a signal engine.
func New(opts Options, client exchange.Client, eng *engine.Engine, st *store.Store, log zerolog.Logger) *Scanner {
	return &Scanner{opts: opts.withDefaults(), client: client, engine: eng, store: st, log: log}
}

type coinResult struct {
	sig  signal.Signal
	skip *signal.Skip
}

// Cycle produces the full batch and the ranked top list for one pass, persisting both.
// A failed fetch degrades to a NO_ENTRY or a recorded skip; the cycle itself only
// fails on persistence errors.
func (s *Scanner) Cycle(ctx context.Context, now time.Time) (signal.Batch, []signal.Signal, error) {
	results := make([]coinResult, len(s.opts.Coins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, coin := range s.opts.Coins {
		i, coin := i, coin
		g.Go(func() error {
			results[i] = s.evaluate(gctx, coin)
			return nil
		})
	}
	// Workers never return errors; the group is only a bounded waiter.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return signal.Batch{}, nil, err
	}

	items := make([]signal.Signal, 0, len(results))
	var skipped []signal.Skip
	for _, r := range results {
		if r.skip != nil {
			skipped = append(skipped, *r.skip)
			continue
		}
		items = append(items, r.sig)
		metrics.SignalsTotal.WithLabelValues(string(r.sig.Side)).Inc()
	}

	top := rank.Select(items, s.opts.Rank)
	ttl := now.Add(s.opts.TTL).UTC().Format(time.RFC3339)
	for i := range top {
		top[i].TTLDeadline = ttl
	}

	batch := signal.NewBatch("entrada-pro-worker", s.opts.Rank.GainMinPct, len(s.opts.Coins), items, skipped, now)
	if err := s.store.WriteSnapshot(store.SignalsFile, batch); err != nil {
		return batch, top, err
	}
	topBatch := signal.NewBatch("entrada-pro-worker", s.opts.Rank.GainMinPct, len(s.opts.Coins), top, nil, now)
	if err := s.store.WriteSnapshot(store.TopFile, topBatch); err != nil {
		return batch, top, err
	}

	metrics.CyclesTotal.WithLabelValues("worker").Inc()
	s.log.Info().
		Int("signals", len(items)).
		Int("top", len(top)).
		Int("skipped", len(skipped)).
		Msg("cycle complete")
	return batch, top, nil
}

// evaluate fetches one coin's market data and builds its signal. Missing candles on
// both timeframes make the coin unusable this cycle, anything less degrades.
func (s *Scanner) evaluate(ctx context.Context, coin string) coinResult {
	symbol := exchange.Symbol(coin)

	h1, err1 := s.client.Klines(ctx, symbol, "1h", s.opts.CandleLimit)
	if err1 != nil {
		metrics.FetchErrorsTotal.WithLabelValues("klines_1h").Inc()
		s.log.Warn().Err(err1).Str("coin", coin).Msg("1h klines unavailable")
	}
	h4, err4 := s.client.Klines(ctx, symbol, "4h", s.opts.CandleLimit)
	if err4 != nil {
		metrics.FetchErrorsTotal.WithLabelValues("klines_4h").Inc()
		s.log.Warn().Err(err4).Str("coin", coin).Msg("4h klines unavailable")
	}
	if len(h1) == 0 && len(h4) == 0 {
		return coinResult{skip: &signal.Skip{Instrument: coin, Reason: "no candle data"}}
	}

	mark, err := s.client.MarkPrice(ctx, symbol)
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues("mark").Inc()
		s.log.Warn().Err(err).Str("coin", coin).Msg("mark price unavailable, using close fallback")
		mark = 0
	}

	return coinResult{sig: s.engine.Build(coin, h1, h4, mark)}
}
