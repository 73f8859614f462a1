package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultStreamURL = "wss://fstream.binance.com/stream"

// MarkStream keeps a last-known mark price per symbol from the Binance futures
// markPrice websocket, so the audit poll reads a fresh price without one REST call
// per open position. Reconnects with backoff; consumers fall back to REST while the
// map is cold.
type MarkStream struct {
	url     string
	symbols []string
	log     zerolog.Logger

	mu     sync.RWMutex
	prices map[string]float64
}

// NewMarkStream builds a stream for the given perpetual symbols.
func NewMarkStream(symbols []string, log zerolog.Logger) *MarkStream {
	return &MarkStream{
		url:     defaultStreamURL,
		symbols: symbols,
		log:     log,
		prices:  make(map[string]float64),
	}
}

// Price returns the last streamed mark price for the symbol, if any.
func (m *MarkStream) Price(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	px, ok := m.prices[symbol]
	return px, ok
}

// Snapshot copies the current price map.
func (m *MarkStream) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.prices))
	for k, v := range m.prices {
		out[k] = v
	}
	return out
}

// Run consumes the stream until the context is canceled, reconnecting on failure.
func (m *MarkStream) Run(ctx context.Context) error {
	if len(m.symbols) == 0 {
		return fmt.Errorf("exchange: mark stream requires at least one symbol")
	}
	streams := make([]string, len(m.symbols))
	for i, sym := range m.symbols {
		streams[i] = strings.ToLower(sym) + "@markPrice"
	}
	url := m.url + "?streams=" + strings.Join(streams, "/")

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.consume(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Warn().Err(err).Msg("mark stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (m *MarkStream) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	m.log.Info().Strs("symbols", m.symbols).Msg("connected mark price stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		symbol, price, err := parseMarkUpdate(message)
		if err != nil {
			m.log.Warn().Err(err).Msg("failed to decode mark update")
			continue
		}
		if price <= 0 {
			continue
		}
		m.mu.Lock()
		m.prices[symbol] = price
		m.mu.Unlock()
	}
}

type markEnvelope struct {
	Data struct {
		Symbol string `json:"s"`
		Mark   string `json:"p"`
	} `json:"data"`
}

// parseMarkUpdate extracts (symbol, mark price) from one combined-stream message.
func parseMarkUpdate(message []byte) (string, float64, error) {
	var env markEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "", 0, err
	}
	if env.Data.Symbol == "" {
		return "", 0, fmt.Errorf("mark update without symbol")
	}
	px, err := strconv.ParseFloat(env.Data.Mark, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad mark price %q: %w", env.Data.Mark, err)
	}
	return strings.ToUpper(env.Data.Symbol), px, nil
}
