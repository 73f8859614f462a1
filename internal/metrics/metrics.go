package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cycles_total", Help: "Completed cycles per loop"},
		[]string{"loop"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by side"},
		[]string{"side"},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fetch_errors_total", Help: "Market data fetch failures"},
		[]string{"kind"},
	)
	PositionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "positions_open", Help: "Currently tracked open positions"},
	)
	PositionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "positions_closed_total", Help: "Closed positions by result"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, SignalsTotal, FetchErrorsTotal, PositionsOpen, PositionsClosedTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
