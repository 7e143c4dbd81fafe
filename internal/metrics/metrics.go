// Package metrics exposes ledger counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "loan_ledger"

// Metrics is nil-safe: every method is a no-op on a nil receiver.
type Metrics struct {
	loansApplied     prometheus.Counter
	transitions      *prometheus.CounterVec
	paymentsAccepted prometheus.Counter
	paymentsRejected *prometheus.CounterVec
	amountRepaid     prometheus.Counter
	discrepancies    prometheus.Gauge
	httpDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the ledger collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		loansApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_applied_total",
			Help:      "Loan applications accepted.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_transitions_total",
			Help:      "Loan status transitions by target status.",
		}, []string{"to"}),
		paymentsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_accepted_total",
			Help:      "Repayments applied to a loan.",
		}),
		paymentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_rejected_total",
			Help:      "Repayments refused, by error code.",
		}, []string{"reason"}),
		amountRepaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_repaid_total",
			Help:      "Sum of accepted repayment amounts.",
		}),
		discrepancies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_discrepancies",
			Help:      "Loans found inconsistent by the last reconciliation run.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.loansApplied,
		m.transitions,
		m.paymentsAccepted,
		m.paymentsRejected,
		m.amountRepaid,
		m.discrepancies,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) LoanApplied() {
	if m == nil {
		return
	}
	m.loansApplied.Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) PaymentAccepted(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.paymentsAccepted.Inc()
	m.amountRepaid.Add(amount.InexactFloat64())
}

func (m *Metrics) PaymentRejected(reason string) {
	if m == nil {
		return
	}
	m.paymentsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetDiscrepancies(n int) {
	if m == nil {
		return
	}
	m.discrepancies.Set(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
