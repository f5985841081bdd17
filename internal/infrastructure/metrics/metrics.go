package metrics

import (
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements application.StatsRecorder on Prometheus counters.
type Metrics struct {
	RefreshPassesTotal       prometheus.Counter
	RefreshPassDuration      prometheus.Histogram
	RefreshPairFailuresTotal *prometheus.CounterVec
	TradesTotal              *prometheus.CounterVec
	TradeErrorsTotal         *prometheus.CounterVec
}

var _ application.StatsRecorder = (*Metrics)(nil)

func New() *Metrics {
	return &Metrics{
		RefreshPassesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rate_refresh_passes_total",
			Help: "Number of completed rate refresh passes",
		}),
		RefreshPassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rate_refresh_pass_duration_seconds",
			Help:    "Duration of a rate refresh pass",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		RefreshPairFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_refresh_pair_failures_total",
			Help: "Pairs left without a successful quote in a refresh pass",
		}, []string{"pair"}),
		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trades_total",
			Help: "Executed trades",
		}, []string{"side", "currency"}),
		TradeErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trade_errors_total",
			Help: "Rejected trades by failure kind",
		}, []string{"side", "reason"}),
	}
}

func (m *Metrics) RecordRefreshPass(d time.Duration, updated, failed int) {
	m.RefreshPassesTotal.Inc()
	m.RefreshPassDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordRefreshFailure(pair domain.Pair) {
	m.RefreshPairFailuresTotal.WithLabelValues(string(pair)).Inc()
}

func (m *Metrics) RecordTrade(side, currency string) {
	m.TradesTotal.WithLabelValues(side, currency).Inc()
}

func (m *Metrics) RecordTradeError(side, reason string) {
	m.TradeErrorsTotal.WithLabelValues(side, reason).Inc()
}
