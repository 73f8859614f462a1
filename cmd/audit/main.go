// Binary audit tracks the outcomes of ranked signals: it opens a paper position per
// top-list entry, polls prices until target, invalidation, or TTL resolves it, and
// maintains the closed log plus the aggregate performance summary.
package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/audit"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/config"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/exchange"
	"github.com/roteirods-byte/ENTRADA-PRO/internal/metrics"
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

	loc, err := time.LoadLocation(cfg.Audit.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.Audit.Timezone).Msg("bad timezone, using UTC")
		loc = time.UTC
	}

	var stream audit.PriceSource
	if cfg.Audit.UseStream {
		symbols := make([]string, len(cfg.Coins))
		for i, coin := range cfg.Coins {
			symbols[i] = exchange.Symbol(coin)
		}
		ms := exchange.NewMarkStream(symbols, log)
		go func() {
			if err := ms.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("mark stream stopped")
			}
		}()
		stream = ms
	}

	runner, err := audit.NewRunner(audit.RunnerOptions{
		MinSamples: cfg.Audit.MinSamples,
		Location:   loc,
	}, store.New(cfg.Storage.DataDir), client, stream, log)
	if err != nil {
		log.Fatal().Err(err).Msg("restore open positions")
	}

	interval := time.Duration(cfg.Audit.PollIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Int("open", runner.Tracker().OpenCount()).
		Dur("interval", interval).
		Msg("audit started")

	for {
		if err := runner.Cycle(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("audit cycle failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
		}
	}
}
