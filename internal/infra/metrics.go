package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics are the bot's Prometheus instruments. A nil *Metrics is valid
// everywhere and records nothing, so tests can skip wiring it.
type Metrics struct {
	Decisions         *prometheus.CounterVec // signal: rebalance|maker|hold
	Orders            *prometheus.CounterVec // mode: paper|live, side: BUY|SELL
	OrderOutcomes     *prometheus.CounterVec // outcome: accepted|rejected|cancelled
	Performance       prometheus.Gauge
	PortfolioVariance prometheus.Gauge
	CombinationLegs   prometheus.Histogram
}

// NewMetrics creates and registers the instrument set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_decisions_total",
				Help: "Decisions taken",
			},
			[]string{"signal"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_orders_total",
				Help: "Orders placed",
			},
			[]string{"mode", "side"},
		),
		OrderOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_order_outcomes_total",
				Help: "Order confirmations split by outcome",
			},
			[]string{"outcome"},
		),
		Performance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_performance_score",
				Help: "Risk-adjusted portfolio score in dollars",
			},
		),
		PortfolioVariance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_portfolio_variance",
				Help: "Current portfolio payoff variance",
			},
		),
		CombinationLegs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bot_combination_legs",
				Help:    "Leg count of submitted trade combinations",
				Buckets: prometheus.LinearBuckets(1, 1, 8),
			},
		),
	}

	reg.MustRegister(m.Decisions, m.Orders, m.OrderOutcomes,
		m.Performance, m.PortfolioVariance, m.CombinationLegs)

	return m
}

// RecordDecision counts one decision by signal.
func (m *Metrics) RecordDecision(signal string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(signal).Inc()
}

// RecordOrder counts one placed order.
func (m *Metrics) RecordOrder(mode, side string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(mode, side).Inc()
}

// RecordOutcome counts one order confirmation.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.OrderOutcomes.WithLabelValues(outcome).Inc()
}

// SetPerformance publishes the current portfolio score.
func (m *Metrics) SetPerformance(score float64) {
	if m == nil {
		return
	}
	m.Performance.Set(score)
}

// SetPortfolioVariance publishes the current payoff variance.
func (m *Metrics) SetPortfolioVariance(v float64) {
	if m == nil {
		return
	}
	m.PortfolioVariance.Set(v)
}

// ObserveCombinationLegs records the leg count of a submitted set.
func (m *Metrics) ObserveCombinationLegs(n int) {
	if m == nil {
		return
	}
	m.CombinationLegs.Observe(float64(n))
}

// ServeMetrics exposes /metrics on addr. The returned server is handed
// back so shutdown can close it.
func ServeMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Metrics server listening", zap.String("addr", addr))
	return srv
}
