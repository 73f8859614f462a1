package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "entrada-pro-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.Exchange.Provider != "bybit" {
		t.Fatalf("unexpected provider: %s", cfg.Exchange.Provider)
	}
	if len(cfg.Coins) != 3 || cfg.Coins[0] != "BTC" {
		t.Fatalf("unexpected coins: %+v", cfg.Coins)
	}
	if cfg.Engine.GainMinPct != 2.5 {
		t.Fatalf("unexpected gain min: %.2f", cfg.Engine.GainMinPct)
	}
	if cfg.Engine.ConfidenceMinPct != 60 {
		t.Fatalf("unexpected confidence min: %.2f", cfg.Engine.ConfidenceMinPct)
	}
	if cfg.Engine.CandleLimit != 150 {
		t.Fatalf("unexpected candle limit: %d", cfg.Engine.CandleLimit)
	}
	if cfg.Rank.TopN != 5 {
		t.Fatalf("unexpected top n: %d", cfg.Rank.TopN)
	}
	if cfg.Audit.TTLHours != 12 {
		t.Fatalf("unexpected ttl hours: %d", cfg.Audit.TTLHours)
	}
	if cfg.Audit.MinSamples != 4 {
		t.Fatalf("unexpected min samples: %d", cfg.Audit.MinSamples)
	}
	if !cfg.Audit.UseStream {
		t.Fatalf("expected use_stream true")
	}
	if cfg.Worker.IntervalSecs != 30 || cfg.Worker.Concurrency != 4 {
		t.Fatalf("unexpected worker settings: %+v", cfg.Worker)
	}
	if cfg.Storage.DataDir != "/tmp/entrada-pro-test" {
		t.Fatalf("unexpected data dir: %s", cfg.Storage.DataDir)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: minimal\n"), 0o644); err != nil {
		t.Fatalf("write minimal config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Engine.GainMinPct != 2 || cfg.Engine.ConfidenceMinPct != 55 {
		t.Fatalf("threshold defaults not applied: %+v", cfg.Engine)
	}
	if cfg.Rank.TopN != 10 || cfg.Rank.Points.High != 3 {
		t.Fatalf("rank defaults not applied: %+v", cfg.Rank)
	}
	if cfg.Audit.TTLHours != 24 || cfg.Audit.Timezone != "America/Sao_Paulo" {
		t.Fatalf("audit defaults not applied: %+v", cfg.Audit)
	}
	if len(cfg.Coins) != len(DefaultCoins) {
		t.Fatalf("expected default coin universe, got %d coins", len(cfg.Coins))
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GAIN_MIN_PCT", "3.5")
	t.Setenv("ASSERT_MIN_PCT", "65")
	t.Setenv("DATA_DIR", "/tmp/override")
	t.Setenv("WORKER_INTERVAL_S", "15")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Engine.GainMinPct != 3.5 || cfg.Engine.ConfidenceMinPct != 65 {
		t.Fatalf("env threshold overrides not applied: %+v", cfg.Engine)
	}
	if cfg.Storage.DataDir != "/tmp/override" {
		t.Fatalf("env data dir override not applied: %s", cfg.Storage.DataDir)
	}
	if cfg.Worker.IntervalSecs != 15 {
		t.Fatalf("env interval override not applied: %d", cfg.Worker.IntervalSecs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
