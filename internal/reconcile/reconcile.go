// Package reconcile audits persisted loans against their payment ledger.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"

	"go.uber.org/zap"
)

// Discrepancy describes one broken ledger invariant. Nothing is repaired.
type Discrepancy struct {
	LoanID string
	Check  string
	Detail string
}

type Reconciler struct {
	loans    repository.LoanRepository
	payments repository.PaymentRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewReconciler(loans repository.LoanRepository, payments repository.PaymentRepository, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		loans:    loans,
		payments: payments,
		metrics:  m,
		logger:   logger,
	}
}

// Run checks every approved or completed loan and reports what it found.
func (r *Reconciler) Run(ctx context.Context) ([]Discrepancy, error) {
	loans, err := r.loans.ListByStatus(ctx, domain.LoanStatusApproved, domain.LoanStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	var found []Discrepancy
	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		discrepancies, err := r.check(ctx, loan)
		if err != nil {
			return found, fmt.Errorf("check loan %s: %w", loan.ID, err)
		}
		found = append(found, discrepancies...)
	}

	for _, d := range found {
		r.logger.Warn("ledger discrepancy",
			zap.String("loan_id", d.LoanID),
			zap.String("check", d.Check),
			zap.String("detail", d.Detail),
		)
	}
	r.metrics.SetDiscrepancies(len(found))
	r.logger.Info("reconciliation finished",
		zap.Int("loans_checked", len(loans)),
		zap.Int("discrepancies", len(found)),
	)

	return found, nil
}

func (r *Reconciler) check(ctx context.Context, loan *domain.Loan) ([]Discrepancy, error) {
	loanID := loan.ID.String()
	var found []Discrepancy
	report := func(check, format string, args ...interface{}) {
		found = append(found, Discrepancy{LoanID: loanID, Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	totalPaid, err := r.payments.GetTotalPaid(ctx, loanID)
	if err != nil {
		return nil, err
	}

	expected := loan.TotalRepayable().Sub(totalPaid)
	if !expected.Equal(loan.BalanceRemaining) {
		report("balance", "balance %s, expected %s from %s paid",
			loan.BalanceRemaining.StringFixed(2), expected.StringFixed(2), totalPaid.StringFixed(2))
	}

	if loan.BalanceRemaining.IsNegative() {
		report("non_negative", "balance %s is below zero", loan.BalanceRemaining.StringFixed(2))
	}

	if loan.Completed != (loan.Status == domain.LoanStatusCompleted) {
		report("completion", "completed=%t with status %s", loan.Completed, loan.Status)
	}

	latest, err := r.payments.GetLatestPayment(ctx, loanID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	case !latest.BalanceAfter.Equal(loan.BalanceRemaining):
		report("latest_payment", "latest payment left %s but balance is %s",
			latest.BalanceAfter.StringFixed(2), loan.BalanceRemaining.StringFixed(2))
	}

	return found, nil
}
