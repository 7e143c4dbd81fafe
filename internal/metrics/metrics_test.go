package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LoanApplied()
	m.Transition("approved")
	m.Transition("approved")
	m.PaymentAccepted(decimal.RequireFromString("100.58"))
	m.PaymentRejected("OVERPAYMENT_REJECTED")
	m.SetDiscrepancies(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loansApplied))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsAccepted))
	assert.InDelta(t, 100.58, testutil.ToFloat64(m.amountRepaid), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsRejected.WithLabelValues("OVERPAYMENT_REJECTED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.discrepancies))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.LoanApplied()
		m.Transition("rejected")
		m.PaymentAccepted(decimal.NewFromInt(1))
		m.PaymentRejected("x")
		m.SetDiscrepancies(1)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.LoanApplied()
	m.ObserveHTTP("POST", "/api/v1/loans/apply", http.StatusCreated, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loan_ledger_loans_applied_total 1")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/loans/apply"`)
}
