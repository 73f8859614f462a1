package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSymbolMapping(t *testing.T) {
	cases := map[string]string{
		"BTC":    "BTCUSDT",
		"btc":    "BTCUSDT",
		" ETH ":  "ETHUSDT",
		"PEPE":   "1000PEPEUSDT",
		"BONK":   "1000BONKUSDT",
		"FLOKI":  "1000FLOKIUSDT",
		"SHIB":   "1000SHIBUSDT",
		"RENDER": "RENDERUSDT",
	}
	for coin, want := range cases {
		if got := Symbol(coin); got != want {
			t.Fatalf("Symbol(%q) = %q, want %q", coin, got, want)
		}
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("kraken", "", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestStubIsDeterministicAndCoherent(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	first, err := stub.Klines(ctx, "BTCUSDT", "4h", 200)
	if err != nil {
		t.Fatalf("klines: %v", err)
	}
	second, _ := stub.Klines(ctx, "BTCUSDT", "4h", 200)
	if len(first) != 200 || first[0] != second[0] || first[199] != second[199] {
		t.Fatalf("stub klines must be deterministic")
	}
	for _, c := range first {
		if !c.Valid() {
			t.Fatalf("stub emitted invalid candle: %+v", c)
		}
	}

	mark, err := stub.MarkPrice(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if mark != first[len(first)-1].Close {
		t.Fatalf("stub mark %.2f should equal last close %.2f", mark, first[len(first)-1].Close)
	}
}

func TestBybitKlinesReversedAndParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/kline" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "240" {
			t.Fatalf("expected 4h mapped to 240, got %q", got)
		}
		resp := map[string]any{
			"retCode": 0,
			"retMsg":  "OK",
			"result": map[string]any{
				// Newest first, as the real API serves them.
				"list": [][]string{
					{"1700003600000", "102", "103", "101", "102.5", "10", "1000"},
					{"1700000000000", "100", "101", "99", "100.5", "10", "1000"},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewBybit(srv.URL)
	candles, err := client.Klines(context.Background(), "BTCUSDT", "4h", 2)
	if err != nil {
		t.Fatalf("klines: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Open != 100 || candles[1].Open != 102 {
		t.Fatalf("candles not reordered oldest first: %+v", candles)
	}
}

func TestBybitMarkPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"retCode": 0,
			"retMsg":  "OK",
			"result": map[string]any{
				"list": []map[string]string{{"markPrice": "64123.5"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewBybit(srv.URL)
	mark, err := client.MarkPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if mark != 64123.5 {
		t.Fatalf("expected 64123.5, got %v", mark)
	}
}

func TestBybitErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"retCode": 10001, "retMsg": "params error", "result": map[string]any{}})
	}))
	defer srv.Close()

	client := NewBybit(srv.URL)
	if _, err := client.MarkPrice(context.Background(), "BTCUSDT"); err == nil {
		t.Fatalf("expected retCode error")
	}
}

func TestParseMarkUpdate(t *testing.T) {
	msg := []byte(`{"stream":"btcusdt@markPrice","data":{"e":"markPriceUpdate","s":"BTCUSDT","p":"64100.10"}}`)
	symbol, price, err := parseMarkUpdate(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if symbol != "BTCUSDT" || price != 64100.10 {
		t.Fatalf("unexpected parse result: %s %.2f", symbol, price)
	}

	if _, _, err := parseMarkUpdate([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for missing symbol")
	}
	if _, _, err := parseMarkUpdate([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for bad payload")
	}
}
