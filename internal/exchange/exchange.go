// Package exchange hosts the market data connectors feeding the worker and audit loops.
package exchange

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

const (
	// ProviderBinance reads USD-M futures data from Binance.
	ProviderBinance = "binance"
	// ProviderBybit reads linear perpetual data from Bybit v5.
	ProviderBybit = "bybit"
	// ProviderStub emits deterministic synthetic data (useful for tests/offline work).
	ProviderStub = "stub"
)

// Client is the capability the core needs from a venue: a mark price and candles.
type Client interface {
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error)
}

// New constructs a client for the requested provider.
func New(provider, apiKey, apiSecret string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderBinance:
		return NewBinance(apiKey, apiSecret), nil
	case ProviderBybit:
		return NewBybit(""), nil
	case ProviderStub:
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("exchange: unknown provider %q", provider)
	}
}

// multiplied lists coins quoted with a 1000x contract multiplier on the venues we use.
var multiplied = map[string]string{
	"BONK":  "1000BONK",
	"FLOKI": "1000FLOKI",
	"PEPE":  "1000PEPE",
	"SHIB":  "1000SHIB",
}

// Symbol maps a coin identifier to its USDT perpetual symbol.
func Symbol(coin string) string {
	base := strings.ToUpper(strings.TrimSpace(coin))
	if m, ok := multiplied[base]; ok {
		base = m
	}
	return base + "USDT"
}

// Stub serves synthetic but deterministic market data derived from the symbol name,
// so offline runs and tests see stable prices without network access.
type Stub struct{}

// NewStub returns the synthetic data client.
func NewStub() *Stub { return &Stub{} }

func (s *Stub) seed(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 50 + float64(h.Sum32()%1000)
}

// MarkPrice returns a stable synthetic price for the symbol.
func (s *Stub) MarkPrice(_ context.Context, symbol string) (float64, error) {
	base := s.seed(symbol)
	return base + 200*0.25, nil
}

// Klines returns a gently rising synthetic series ending at the mark price.
func (s *Stub) Klines(_ context.Context, symbol, _ string, limit int) ([]signal.Candle, error) {
	if limit <= 0 {
		limit = 200
	}
	base := s.seed(symbol)
	out := make([]signal.Candle, 0, limit)
	prev := base
	for i := 0; i < limit; i++ {
		open := prev
		close := open + 0.25
		out = append(out, signal.Candle{
			Open:  open,
			High:  close + 0.1,
			Low:   open - 0.1,
			Close: close,
		})
		prev = close
	}
	return out, nil
}
