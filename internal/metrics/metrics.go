package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_rounds_total",
		Help: "Completed rounds.",
	})
	BetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_bets_total",
		Help: "Accepted bets.",
	})
	BetsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_bets_rejected_total",
		Help: "Rejected bet and cash-out commands by reason.",
	}, []string{"reason"})
	CashOutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_cashouts_total",
		Help: "Accepted cash-outs.",
	})
	BetAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_bet_amount_total",
		Help: "Sum of accepted stakes.",
	})
	PayoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_payout_total",
		Help: "Sum of payouts, cash-outs included.",
	})
	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_settlement_failures_total",
		Help: "Persistence failures during settlement, queued for retry.",
	})
	CurrentMultiplier = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_current_multiplier",
		Help: "Multiplier of the running round.",
	})
	HouseBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_house_balance",
		Help: "House reserve balance.",
	})
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_connected_clients",
		Help: "WebSocket clients currently connected.",
	})
)

type HealthFunc func(ctx context.Context) error

// StartServer runs a lightweight HTTP server for /metrics and /healthz on its
// own port, away from the game gateway.
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
