package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_decisions_total", Help: "Admission decisions by reason"},
		[]string{"reason"},
	)
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_orders_total", Help: "Market orders by side and result"},
		[]string{"side", "result"},
	)
	Exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_exits_total", Help: "Positions closed by exit state"},
		[]string{"state"},
	)
	LedgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_ledger_writes_total", Help: "Ledger mutations by result"},
		[]string{"result"},
	)
	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_cycle_duration_seconds",
			Help:    "Duration of scan and reconcile cycles",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"cycle"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_open_positions", Help: "Records in the position ledger"},
	)
	ExchangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_exchange_requests_total", Help: "Exchange calls by operation and result"},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(Decisions, Orders, Exits, LedgerWrites, CycleDuration, OpenPositions, ExchangeRequests)
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCycle records the time since start under cycle.
func ObserveCycle(cycle string, start time.Time) {
	CycleDuration.WithLabelValues(cycle).Observe(time.Since(start).Seconds())
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
