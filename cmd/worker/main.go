// Binary worker runs the signal cycle on an interval: fetch market data for the coin
// universe, build and rank signals, and persist the batch snapshots.
package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/config"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/engine"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/exchange"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/metrics"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/rank"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/scan"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/store"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/util"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := exchange.New(cfg.Exchange.Provider, cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	if err != nil {
		log.Fatal().Err(err).Msg("exchange client")
	}

	eng := engine.New(engine.Params{
		GainMinPct:       cfg.Engine.GainMinPct,
		ConfidenceMinPct: cfg.Engine.ConfidenceMinPct,
		Lookahead:        cfg.Engine.Lookahead,
	})
	scanner := scan.New(scan.Options{
		Coins:       cfg.Coins,
		CandleLimit: cfg.Engine.CandleLimit,
		Concurrency: cfg.Worker.Concurrency,
		TTL:         time.Duration(cfg.Audit.TTLHours) * time.Hour,
		Rank: rank.Options{
			TopN:             cfg.Rank.TopN,
			GainMinPct:       cfg.Engine.GainMinPct,
			ConfidenceMinPct: cfg.Engine.ConfidenceMinPct,
			Points: rank.TierPoints{
				High: cfg.Rank.Points.High,
				Mid:  cfg.Rank.Points.Mid,
				Low:  cfg.Rank.Points.Low,
			},
		},
	}, client, eng, store.New(cfg.Storage.DataDir), log)

	interval := time.Duration(cfg.Worker.IntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Str("provider", cfg.Exchange.Provider).
		Int("coins", len(cfg.Coins)).
		Dur("interval", interval).
		Msg("worker started")

	// First cycle immediately, then on the ticker. A failed cycle is logged and retried,
	// never fatal.
	for {
		if _, _, err := scanner.Cycle(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("cycle failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
		}
	}
}
