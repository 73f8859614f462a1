// Package config exposes strongly typed application configuration loaded from YAML,
// with environment overrides for deploy-time knobs.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes venue connectivity.
type Exchange struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Engine groups the signal engine thresholds.
type Engine struct {
	GainMinPct       float64 `yaml:"gain_min_pct"`
	ConfidenceMinPct float64 `yaml:"confidence_min_pct"`
	Lookahead        int     `yaml:"lookahead"`
	CandleLimit      int     `yaml:"candle_limit"`
}

// RankPoints configures the per-tier score contributions.
type RankPoints struct {
	High int `yaml:"high"`
	Mid  int `yaml:"mid"`
	Low  int `yaml:"low"`
}

// Rank bounds and scores the top list.
type Rank struct {
	TopN   int        `yaml:"top_n"`
	Points RankPoints `yaml:"points"`
}

// Audit tunes the outcome tracker loop.
type Audit struct {
	TTLHours         int    `yaml:"ttl_hours"`
	PollIntervalSecs int    `yaml:"poll_interval_secs"`
	MinSamples       int    `yaml:"min_samples"`
	Timezone         string `yaml:"timezone"`
	UseStream        bool   `yaml:"use_stream"`
}

// Worker tunes the signal cycle.
type Worker struct {
	IntervalSecs int `yaml:"interval_secs"`
	Concurrency  int `yaml:"concurrency"`
}

// Storage locates the on-disk JSON artifacts.
type Storage struct {
	DataDir string `yaml:"data_dir"`
}

// Config collects every configuration leaf.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Coins    []string `yaml:"coins"`
	Engine   Engine   `yaml:"engine"`
	Rank     Rank     `yaml:"rank"`
	Audit    Audit    `yaml:"audit"`
	Worker   Worker   `yaml:"worker"`
	Storage  Storage  `yaml:"storage"`
}

// DefaultCoins is the tracked universe when none is configured.
var DefaultCoins = []string{
	"AAVE", "ADA", "APE", "APT", "AR", "ARB", "ATOM", "AVAX", "AXS", "BAT", "BCH", "BLUR", "BNB", "BONK", "BTC",
	"COMP", "CRV", "DOGE", "DOT", "DYDX", "EGLD", "EOS", "ETH", "FET", "FIL", "GALA", "GRT", "ICP", "INJ", "JTO",
	"KAVA", "KSM", "LDO", "LINK", "LTC", "NEAR", "OP", "PEPE", "POL", "RENDER", "RUNE", "SEI", "SHIB", "SOL",
	"SUI", "TIA", "TON", "TRX", "UNI", "WIF", "XLM", "XRP", "XTZ",
}

// Load reads a YAML file, applies defaults, then applies environment overrides.
// A .env file next to the process is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "entrada-pro-worker"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if len(c.Coins) == 0 {
		c.Coins = append([]string(nil), DefaultCoins...)
	}
	if c.Engine.GainMinPct == 0 {
		c.Engine.GainMinPct = 2
	}
	if c.Engine.ConfidenceMinPct == 0 {
		c.Engine.ConfidenceMinPct = 55
	}
	if c.Engine.Lookahead == 0 {
		c.Engine.Lookahead = 12
	}
	if c.Engine.CandleLimit == 0 {
		c.Engine.CandleLimit = 200
	}
	if c.Rank.TopN == 0 {
		c.Rank.TopN = 10
	}
	if c.Rank.Points == (RankPoints{}) {
		c.Rank.Points = RankPoints{High: 3, Mid: 2, Low: 1}
	}
	if c.Audit.TTLHours == 0 {
		c.Audit.TTLHours = 24
	}
	if c.Audit.PollIntervalSecs == 0 {
		c.Audit.PollIntervalSecs = 300
	}
	if c.Audit.MinSamples == 0 {
		c.Audit.MinSamples = 5
	}
	if c.Audit.Timezone == "" {
		c.Audit.Timezone = "America/Sao_Paulo"
	}
	if c.Worker.IntervalSecs == 0 {
		c.Worker.IntervalSecs = 60
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 8
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
}

// applyEnv honors the deploy-time variable names the service has always used.
func (c *Config) applyEnv() {
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v, ok := envFloat("GAIN_MIN_PCT"); ok {
		c.Engine.GainMinPct = v
	}
	if v, ok := envFloat("ASSERT_MIN_PCT"); ok {
		c.Engine.ConfidenceMinPct = v
	}
	if v, ok := envInt("WORKER_INTERVAL_S"); ok {
		c.Worker.IntervalSecs = v
	}
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
