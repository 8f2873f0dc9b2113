// Package metrics registers Prometheus instrumentation for the wallet
// payment pipeline.
package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "walletpay_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	quoteTotal   *prometheus.CounterVec
	quoteLatency *prometheus.HistogramVec

	rateLookupTotal   *prometheus.CounterVec
	rateLookupLatency *prometheus.HistogramVec

	settlementTotal   *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec

	rewardTotal *prometheus.CounterVec

	reconciliationSweeps    prometheus.Counter
	reconciliationFinalized prometheus.Counter

	statementExportTotal   *prometheus.CounterVec
	statementExportLatency *prometheus.HistogramVec
)

// Init registers payment pipeline metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		quoteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quotes_total",
				Help: "Total quote builds by rail and result",
			},
			[]string{"rail", "result"},
		)
		quoteLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "quote_latency_seconds",
				Help:    "Quote build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		rateLookupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_lookups_total",
				Help: "Total exchange rate lookups by result",
			},
			[]string{"result"},
		)
		rateLookupLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rate_lookup_latency_seconds",
				Help:    "Exchange rate lookup latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		settlementTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlements_total",
				Help: "Total settlement attempts by rail and outcome",
			},
			[]string{"rail", "outcome"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_latency_seconds",
				Help:    "Settlement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		rewardTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rewards_total",
				Help: "Total reward payout requests by outcome",
			},
			[]string{"outcome"},
		)

		reconciliationSweeps = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_sweeps_total",
				Help: "Total reconciliation sweep runs",
			},
		)
		reconciliationFinalized = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_finalized_total",
				Help: "Total pending settlements finalized by reconciliation",
			},
		)

		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement export operations by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			quoteTotal,
			quoteLatency,
			rateLookupTotal,
			rateLookupLatency,
			settlementTotal,
			settlementLatency,
			rewardTotal,
			reconciliationSweeps,
			reconciliationFinalized,
			statementExportTotal,
			statementExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// registerDBMetrics exposes queue depths read straight from the store.
func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	pendingSettlements := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "settlements_pending",
			Help: "Settlement records currently pending",
		},
		func() float64 {
			var count float64
			row := db.QueryRow(`SELECT COUNT(*) FROM settlement_records WHERE status = 'pending'`)
			if err := row.Scan(&count); err != nil {
				if logger != nil {
					logger.Printf("pending settlements gauge: %v", err)
				}
				return 0
			}
			return count
		},
	)
	pendingOutbox := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "event_outbox_pending",
			Help: "Outbox events awaiting dispatch",
		},
		func() float64 {
			var count float64
			row := db.QueryRow(`SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'`)
			if err := row.Scan(&count); err != nil {
				if logger != nil {
					logger.Printf("pending outbox gauge: %v", err)
				}
				return 0
			}
			return count
		},
	)
	prometheus.MustRegister(pendingSettlements, pendingOutbox)
}

// ObserveQuote records quote build latency and result.
func ObserveQuote(rail, result string, duration time.Duration) {
	if rail == "" {
		rail = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if quoteTotal != nil {
		quoteTotal.WithLabelValues(rail, result).Inc()
	}
	if quoteLatency != nil {
		quoteLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveRateLookup records rate lookup latency and result.
func ObserveRateLookup(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if rateLookupTotal != nil {
		rateLookupTotal.WithLabelValues(result).Inc()
	}
	if rateLookupLatency != nil {
		rateLookupLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSettlement records settlement latency and outcome.
func ObserveSettlement(rail, outcome string, duration time.Duration) {
	if rail == "" {
		rail = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if settlementTotal != nil {
		settlementTotal.WithLabelValues(rail, outcome).Inc()
	}
	if settlementLatency != nil {
		settlementLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncReward increments the reward payout counter.
func IncReward(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if rewardTotal != nil {
		rewardTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveSweep records one reconciliation sweep run.
func ObserveSweep(finalized int) {
	if reconciliationSweeps != nil {
		reconciliationSweeps.Inc()
	}
	if reconciliationFinalized != nil && finalized > 0 {
		reconciliationFinalized.Add(float64(finalized))
	}
}

// ObserveStatementExport records export latency and result.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
	OutcomePending   = "pending"
	OutcomeDuplicate = "duplicate"
)
