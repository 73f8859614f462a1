package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

const defaultBybitBaseURL = "https://api.bybit.com"

// bybitIntervals maps worker intervals to the v5 kline interval strings (minutes).
var bybitIntervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720", "1d": "D",
}

// Bybit fetches linear perpetual data from the public v5 REST API.
type Bybit struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewBybit builds a client against the given base URL (empty for production).
func NewBybit(baseURL string) *Bybit {
	if baseURL == "" {
		baseURL = defaultBybitBaseURL
	}
	return &Bybit{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type bybitTickers struct {
	List []struct {
		MarkPrice string `json:"markPrice"`
	} `json:"list"`
}

type bybitKlines struct {
	List [][]string `json:"list"`
}

func (b *Bybit) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bybit %s: status %d", path, resp.StatusCode)
	}

	var env bybitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("bybit %s: decode: %w", path, err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit %s: retCode %d (%s)", path, env.RetCode, env.RetMsg)
	}
	return json.Unmarshal(env.Result, result)
}

// MarkPrice returns the linear-category mark price for the symbol.
func (b *Bybit) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{"category": {"linear"}, "symbol": {symbol}}
	var res bybitTickers
	if err := b.get(ctx, "/v5/market/tickers", params, &res); err != nil {
		return 0, err
	}
	if len(res.List) == 0 {
		return 0, fmt.Errorf("bybit tickers %s: empty list", symbol)
	}
	mark, err := strconv.ParseFloat(res.List[0].MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("bybit tickers %s: bad mark %q: %w", symbol, res.List[0].MarkPrice, err)
	}
	return mark, nil
}

// Klines returns up to limit candles oldest first. Bybit serves newest first, so the
// rows are reversed on the way out.
func (b *Bybit) Klines(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	iv, ok := bybitIntervals[interval]
	if !ok {
		iv = interval
	}
	params := url.Values{
		"category": {"linear"},
		"symbol":   {symbol},
		"interval": {iv},
		"limit":    {strconv.Itoa(limit)},
	}
	var res bybitKlines
	if err := b.get(ctx, "/v5/market/kline", params, &res); err != nil {
		return nil, err
	}
	return parseBybitKlines(res.List), nil
}

// parseBybitKlines converts [startTime, open, high, low, close, ...] rows, newest
// first, into an oldest-first candle series.
func parseBybitKlines(rows [][]string) []signal.Candle {
	out := make([]signal.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 5 {
			continue
		}
		c, err := parseCandle(row[1], row[2], row[3], row[4])
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
