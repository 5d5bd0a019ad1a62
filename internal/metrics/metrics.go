// Package metrics exposes the trading core's health and performance
// counters as Prometheus collectors. The scheduler and every pipeline
// component record through this package instead of rolling their own
// counters, so persistent repeated errors promoting to a louder health
// indicator has one concrete mechanism: ErrorsTotal crossing an
// operator-configured rate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trading_core",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a scheduler tick, by loop name (main, monitor).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"loop"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trading_core",
		Name:      "open_positions",
		Help:      "Current count of open positions tracked by the store.",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trading_core",
		Name:      "errors_total",
		Help:      "Errors observed, partitioned by taxonomy category and component.",
	}, []string{"category", "component"})

	OpportunitiesScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trading_core",
		Name:      "opportunities_scored_total",
		Help:      "Number of opportunity scores computed across all ticks.",
	})

	PositionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trading_core",
		Name:      "positions_opened_total",
		Help:      "Positions opened, partitioned by strategy type.",
	}, []string{"strategy"})

	PartialTPExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trading_core",
		Name:      "partial_tp_executed_total",
		Help:      "Partial take-profit stages executed, partitioned by stage.",
	}, []string{"stage"})

	ReversalEmergencyCloses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trading_core",
		Name:      "reversal_emergency_closes_total",
		Help:      "Positions closed by the reversal monitor's emergency tier.",
	})

	LockContentions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trading_core",
		Name:      "lock_contentions_total",
		Help:      "Distributed lock acquisition attempts that lost to another holder.",
	}, []string{"purpose"})

	AccountDrawdown = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trading_core",
		Name:      "account_drawdown_pct",
		Help:      "Current drawdown from peak equity, as a percentage.",
	})
)

// RecordError increments ErrorsTotal for the given taxonomy category and
// component tag. category may be "" when the error carries no taxonomy.
func RecordError(category, component string) {
	ErrorsTotal.WithLabelValues(category, component).Inc()
}
