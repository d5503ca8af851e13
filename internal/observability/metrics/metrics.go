// Package metrics exposes prometheus counters for billing operations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics captures billing-core health signals.
type BillingMetrics struct {
	invoiceTransitions      *prometheus.CounterVec
	subscriptionTransitions *prometheus.CounterVec
	ledgerTransactions      *prometheus.CounterVec
	insufficientBalance     prometheus.Counter
	numberCollisions        prometheus.Counter
	reconciliationFlags     prometheus.Counter
	sweepRuns               *prometheus.CounterVec
	sweepProcessed          *prometheus.CounterVec
	sweepErrors             *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto(registerer)

	return &BillingMetrics{
		invoiceTransitions: factory.counterVec(
			"lumina_invoice_transitions_total",
			"Invoice status transitions by target status.",
			[]string{"to_status"},
		),
		subscriptionTransitions: factory.counterVec(
			"lumina_subscription_transitions_total",
			"Subscription status transitions by target status.",
			[]string{"to_status"},
		),
		ledgerTransactions: factory.counterVec(
			"lumina_token_transactions_total",
			"Token ledger transactions by type.",
			[]string{"type"},
		),
		insufficientBalance: factory.counter(
			"lumina_token_insufficient_balance_total",
			"Token debits rejected for insufficient balance.",
		),
		numberCollisions: factory.counter(
			"lumina_invoice_number_collisions_total",
			"Invoice number generation retries due to collisions.",
		),
		reconciliationFlags: factory.counter(
			"lumina_purchase_reconciliation_flags_total",
			"Token purchases flagged for manual reconciliation.",
		),
		sweepRuns: factory.counterVec(
			"lumina_sweep_runs_total",
			"Scheduler sweep runs by job.",
			[]string{"job"},
		),
		sweepProcessed: factory.counterVec(
			"lumina_sweep_processed_total",
			"Entities processed by scheduler sweeps.",
			[]string{"job"},
		),
		sweepErrors: factory.counterVec(
			"lumina_sweep_errors_total",
			"Scheduler sweep failures by job.",
			[]string{"job"},
		),
	}
}

// RecordInvoiceTransition counts an invoice status transition.
func (m *BillingMetrics) RecordInvoiceTransition(toStatus string) {
	if m == nil {
		return
	}
	m.invoiceTransitions.WithLabelValues(toStatus).Inc()
}

// RecordSubscriptionTransition counts a subscription status transition.
func (m *BillingMetrics) RecordSubscriptionTransition(toStatus string) {
	if m == nil {
		return
	}
	m.subscriptionTransitions.WithLabelValues(toStatus).Inc()
}

// RecordLedgerTransaction counts a token ledger transaction.
func (m *BillingMetrics) RecordLedgerTransaction(txType string) {
	if m == nil {
		return
	}
	m.ledgerTransactions.WithLabelValues(txType).Inc()
}

// RecordInsufficientBalance counts a rejected debit.
func (m *BillingMetrics) RecordInsufficientBalance() {
	if m == nil {
		return
	}
	m.insufficientBalance.Inc()
}

// RecordNumberCollision counts an invoice number retry.
func (m *BillingMetrics) RecordNumberCollision() {
	if m == nil {
		return
	}
	m.numberCollisions.Inc()
}

// RecordReconciliationFlag counts a purchase left for manual reconciliation.
func (m *BillingMetrics) RecordReconciliationFlag() {
	if m == nil {
		return
	}
	m.reconciliationFlags.Inc()
}

// RecordSweepRun counts a scheduler sweep run.
func (m *BillingMetrics) RecordSweepRun(job string) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(job).Inc()
}

// RecordSweepProcessed counts entities handled by a sweep.
func (m *BillingMetrics) RecordSweepProcessed(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweepProcessed.WithLabelValues(job).Add(float64(count))
}

// RecordSweepError counts a failed sweep run.
func (m *BillingMetrics) RecordSweepError(job string) {
	if m == nil {
		return
	}
	m.sweepErrors.WithLabelValues(job).Inc()
}

type factory struct {
	registerer prometheus.Registerer
}

func promauto(registerer prometheus.Registerer) factory {
	return factory{registerer: registerer}
}

func (f factory) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	return f.register(c).(prometheus.Counter)
}

func (f factory) counterVec(name, help string, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	return f.register(c).(*prometheus.CounterVec)
}

// register tolerates duplicate registration so tests can rebuild the set.
func (f factory) register(c prometheus.Collector) prometheus.Collector {
	if err := f.registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
