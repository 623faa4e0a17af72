package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payledger"

// Collector owns the ledger's prometheus registry. The Wallets, Ledger and
// Payments views plug into the matching service constructors.
type Collector struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cache             *prometheus.CounterVec
	conflicts         *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	outcomes          *prometheus.CounterVec
	riskScore         prometheus.Histogram
	inconsistencies   *prometheus.CounterVec
	publishFailures   *prometheus.CounterVec
	expired           prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_operations_total",
			Help:      "Wallet operations by result",
		}, []string{"operation", "result"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wallet_operation_duration_seconds",
			Help:      "Time taken by wallet operations, conflict retries included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_requests_total",
			Help:      "Balance cache lookups by result",
		}, []string{"operation", "result"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts by store and operation",
		}, []string{"store", "operation"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_transitions_total",
			Help:      "Recorded transaction status transitions",
		}, []string{"type", "from", "to"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_outcomes_total",
			Help:      "Transaction statuses reached by the orchestrator",
		}, []string{"type", "status"}),
		riskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_risk_score",
			Help:      "Distribution of transaction risk scores",
			Buckets:   []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
		}),
		inconsistencies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_inconsistencies_total",
			Help:      "Settlements recorded without their wallet mutation",
		}, []string{"operation"}),
		publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be published",
		}, []string{"event_type"}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_expired_total",
			Help:      "Transactions expired by the sweeper",
		}),
	}
}

// Registry exposes the registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Wallets() *WalletMetrics {
	return &WalletMetrics{c: c}
}

func (c *Collector) Ledger() *LedgerMetrics {
	return &LedgerMetrics{c: c}
}

func (c *Collector) Payments() *PaymentMetrics {
	return &PaymentMetrics{c: c}
}

// WalletMetrics implements wallet.MetricsCollector.
type WalletMetrics struct{ c *Collector }

func (m *WalletMetrics) RecordOperationDuration(operation string, d time.Duration) {
	m.c.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *WalletMetrics) RecordOperationResult(operation, result string) {
	m.c.operations.WithLabelValues(operation, result).Inc()
}

func (m *WalletMetrics) RecordCacheHit(operation string) {
	m.c.cache.WithLabelValues(operation, "hit").Inc()
}

func (m *WalletMetrics) RecordCacheMiss(operation string) {
	m.c.cache.WithLabelValues(operation, "miss").Inc()
}

func (m *WalletMetrics) RecordConflict(operation string) {
	m.c.conflicts.WithLabelValues("wallet", operation).Inc()
}

// LedgerMetrics implements transaction.MetricsCollector.
type LedgerMetrics struct{ c *Collector }

func (m *LedgerMetrics) RecordTransition(txType, from, to string) {
	m.c.transitions.WithLabelValues(txType, from, to).Inc()
}

func (m *LedgerMetrics) RecordConflict(operation string) {
	m.c.conflicts.WithLabelValues("transaction", operation).Inc()
}

// PaymentMetrics implements payment.MetricsCollector.
type PaymentMetrics struct{ c *Collector }

func (m *PaymentMetrics) RecordOutcome(txType, status string) {
	m.c.outcomes.WithLabelValues(txType, status).Inc()
}

func (m *PaymentMetrics) RecordRiskScore(score float64) {
	m.c.riskScore.Observe(score)
}

func (m *PaymentMetrics) RecordInconsistency(operation string) {
	m.c.inconsistencies.WithLabelValues(operation).Inc()
}

func (m *PaymentMetrics) RecordPublishFailure(eventType string) {
	m.c.publishFailures.WithLabelValues(eventType).Inc()
}

func (m *PaymentMetrics) RecordExpired(count int) {
	if count > 0 {
		m.c.expired.Add(float64(count))
	}
}
