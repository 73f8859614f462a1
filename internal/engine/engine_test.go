package engine

import (
	"math"
	"testing"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

// trend builds a steadily drifting candle series: close moves by step each bar with a
// half-unit wick on both sides.
func trend(n int, start, step float64) []signal.Candle {
	out := make([]signal.Candle, 0, n)
	prev := start
	for i := 0; i < n; i++ {
		open := prev
		close := open + step
		high := math.Max(open, close) + 0.5
		low := math.Min(open, close) - 0.5
		out = append(out, signal.Candle{Open: open, High: high, Low: low, Close: close})
		prev = close
	}
	return out
}

func TestBuildLongWhenTimeframesAgree(t *testing.T) {
	eng := New(Params{GainMinPct: 0.1, ConfidenceMinPct: 55})
	h1 := trend(200, 100, 1)
	h4 := trend(200, 100, 1)
	mark := h4[len(h4)-1].Close

	sig := eng.Build("BTC", h1, h4, mark)
	if sig.Side != signal.Long {
		t.Fatalf("expected LONG, got %s", sig.Side)
	}
	if sig.TargetPrice <= sig.CurrentPrice {
		t.Fatalf("long target %.4f not above current %.4f", sig.TargetPrice, sig.CurrentPrice)
	}
	if sig.GainPct <= 0 {
		t.Fatalf("expected positive gain, got %.4f", sig.GainPct)
	}
	if sig.ConfidencePct < 55 {
		t.Fatalf("expected confident replay on a clean trend, got %.2f", sig.ConfidencePct)
	}
	if sig.Risk == "" || sig.Zone == "" || sig.Priority == "" {
		t.Fatalf("expected qualitative tiers on a tradeable signal: %+v", sig)
	}
	if sig.Horizon == "" || sig.Horizon == "-" {
		t.Fatalf("expected a horizon estimate, got %q", sig.Horizon)
	}
	if sig.EntryPrice != sig.CurrentPrice {
		t.Fatalf("entry %.4f must equal current %.4f at creation", sig.EntryPrice, sig.CurrentPrice)
	}
	if sig.PriceSource != SourceMark {
		t.Fatalf("expected MARK source, got %s", sig.PriceSource)
	}
}

func TestBuildShortWhenTimeframesAgree(t *testing.T) {
	eng := New(Params{GainMinPct: 0.1, ConfidenceMinPct: 55})
	h1 := trend(200, 500, -1)
	h4 := trend(200, 500, -1)

	sig := eng.Build("ETH", h1, h4, h4[len(h4)-1].Close)
	if sig.Side != signal.Short {
		t.Fatalf("expected SHORT, got %s", sig.Side)
	}
	if sig.TargetPrice >= sig.CurrentPrice {
		t.Fatalf("short target %.4f not below current %.4f", sig.TargetPrice, sig.CurrentPrice)
	}
}

func TestBuildDisagreementForcesNoEntry(t *testing.T) {
	eng := New(Params{GainMinPct: 0.1, ConfidenceMinPct: 0})
	up := trend(200, 100, 1)
	down := trend(200, 500, -1)

	sig := eng.Build("SOL", up, down, 300)
	if sig.Side != signal.NoEntry {
		t.Fatalf("expected NO_ENTRY on timeframe disagreement, got %s", sig.Side)
	}
	if sig.Zone != "" || sig.Risk != "" || sig.Priority != "" || sig.Horizon != "" {
		t.Fatalf("qualitative fields must be empty on NO_ENTRY: %+v", sig)
	}
}

func TestBuildGatingRetainsNumbers(t *testing.T) {
	eng := New(Params{GainMinPct: 50, ConfidenceMinPct: 55})
	h1 := trend(200, 100, 1)
	h4 := trend(200, 100, 1)

	sig := eng.Build("BTC", h1, h4, h4[len(h4)-1].Close)
	if sig.Side != signal.NoEntry {
		t.Fatalf("expected gated NO_ENTRY, got %s", sig.Side)
	}
	if sig.GainPct <= 0 {
		t.Fatalf("gated signal must retain computed gain, got %.4f", sig.GainPct)
	}
	if sig.ConfidencePct <= 0 {
		t.Fatalf("gated signal must retain computed confidence, got %.4f", sig.ConfidencePct)
	}
	if sig.TargetPrice == sig.CurrentPrice {
		t.Fatalf("gated signal must retain computed target")
	}
	if sig.Zone != "" || sig.Risk != "" || sig.Priority != "" || sig.Horizon != "" {
		t.Fatalf("qualitative fields must be empty when gated: %+v", sig)
	}
}

func TestBuildShortHistoryDegrades(t *testing.T) {
	eng := New(Params{GainMinPct: 2, ConfidenceMinPct: 55})
	sig := eng.Build("DOGE", trend(10, 100, 1), trend(10, 100, 1), 110)
	if sig.Side != signal.NoEntry {
		t.Fatalf("expected NO_ENTRY on short history, got %s", sig.Side)
	}
}

func TestBuildMarkPriceFallsBackToClose(t *testing.T) {
	eng := New(Params{GainMinPct: 0.1, ConfidenceMinPct: 0})
	h4 := trend(200, 100, 1)

	sig := eng.Build("BTC", nil, h4, 0)
	if sig.PriceSource != SourceClose4h {
		t.Fatalf("expected CLOSE_4H fallback, got %s", sig.PriceSource)
	}
	if sig.CurrentPrice != h4[len(h4)-1].Close {
		t.Fatalf("expected last 4h close, got %.4f", sig.CurrentPrice)
	}
}

func TestBuildNoDataAtAll(t *testing.T) {
	eng := New(Params{GainMinPct: 2, ConfidenceMinPct: 55})
	sig := eng.Build("BTC", nil, nil, 0)
	if sig.Side != signal.NoEntry {
		t.Fatalf("expected NO_ENTRY, got %s", sig.Side)
	}
	if sig.PriceSource != SourceNone {
		t.Fatalf("expected NONE source, got %s", sig.PriceSource)
	}
}

func TestConfidenceNeutralPriorOnThinHistory(t *testing.T) {
	eng := New(Params{})
	candles := trend(100, 100, 1)
	got := eng.confidence(candles, signal.Long, 3, 2)
	if got != 50 {
		t.Fatalf("expected neutral 50 prior under %d bars, got %.2f", minReplayBars, got)
	}
}

func TestBuildDropsMalformedCandles(t *testing.T) {
	eng := New(Params{GainMinPct: 0.1, ConfidenceMinPct: 0})
	h4 := trend(200, 100, 1)
	h4 = append(h4, signal.Candle{Open: -1, High: 0, Low: 5, Close: 2})

	sig := eng.Build("BTC", trend(200, 100, 1), h4, 0)
	if sig.CurrentPrice != h4[len(h4)-2].Close {
		t.Fatalf("malformed tail candle must be ignored, got current %.4f", sig.CurrentPrice)
	}
}

func TestClassifyRiskTiers(t *testing.T) {
	cases := []struct {
		atrPct float64
		want   signal.Tier
	}{
		{0.01, signal.TierLow},
		{0.02, signal.TierLow},
		{0.03, signal.TierMedium},
		{0.05, signal.TierMedium},
		{0.08, signal.TierHigh},
	}
	for _, c := range cases {
		if got := classifyRisk(c.atrPct); got != c.want {
			t.Fatalf("classifyRisk(%.2f) = %s, want %s", c.atrPct, got, c.want)
		}
	}
}

func TestClassifyPriorityPenalizesRisk(t *testing.T) {
	base := classifyPriority(70, 6, signal.TierLow)
	if base != signal.TierHigh {
		t.Fatalf("strong signal should be high priority, got %s", base)
	}
	penalized := classifyPriority(70, 6, signal.TierHigh)
	if penalized == signal.TierHigh {
		t.Fatalf("high risk must demote priority, got %s", penalized)
	}
}

func TestFormatHours(t *testing.T) {
	if got := formatHours(0.75); got != "45m" {
		t.Fatalf("expected 45m, got %q", got)
	}
	if got := formatHours(5.25); got != "5.2h" {
		t.Fatalf("expected 5.2h, got %q", got)
	}
	if got := formatHours(0); got != "-" {
		t.Fatalf("expected -, got %q", got)
	}
}
