package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

// Binance fetches USD-M futures mark prices and klines through the official REST API.
type Binance struct {
	client  *futures.Client
	limiter *rate.Limiter
}

// NewBinance builds a client with short HTTP timeouts and a client-side rate limiter,
// so a slow venue degrades a cycle instead of stalling it.
func NewBinance(apiKey, apiSecret string) *Binance {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	client := futures.NewClient(apiKey, apiSecret)
	client.HTTPClient = httpClient

	return &Binance{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// MarkPrice returns the premium-index mark price for the symbol.
func (b *Binance) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	rows, err := b.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance premium index %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("binance premium index %s: empty response", symbol)
	}
	mark, err := strconv.ParseFloat(rows[0].MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("binance premium index %s: bad mark %q: %w", symbol, rows[0].MarkPrice, err)
	}
	return mark, nil
}

// Klines returns up to limit candles of the interval, oldest first.
func (b *Binance) Klines(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	rows, err := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}

	out := make([]signal.Candle, 0, len(rows))
	for _, k := range rows {
		c, err := parseCandle(k.Open, k.High, k.Low, k.Close)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCandle(open, high, low, close string) (signal.Candle, error) {
	o, err := strconv.ParseFloat(open, 64)
	if err != nil {
		return signal.Candle{}, err
	}
	h, err := strconv.ParseFloat(high, 64)
	if err != nil {
		return signal.Candle{}, err
	}
	l, err := strconv.ParseFloat(low, 64)
	if err != nil {
		return signal.Candle{}, err
	}
	c, err := strconv.ParseFloat(close, 64)
	if err != nil {
		return signal.Candle{}, err
	}
	return signal.Candle{Open: o, High: h, Low: l, Close: c}, nil
}
