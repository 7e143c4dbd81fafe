package repository

import (
	"context"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, loan_id, sequence, amount_paid, balance_after, paid_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	query := r.db.Rebind(`
		SELECT ` + paymentColumns + `
		FROM loan_payments
		WHERE loan_id = ?
		ORDER BY sequence
	`)

	payments := []*domain.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

// GetTotalPaid sums in Go so that the result is exact on every backend.
func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error) {
	query := r.db.Rebind(`
		SELECT amount_paid
		FROM loan_payments
		WHERE loan_id = ?
	`)

	var amounts []decimal.Decimal
	if err := r.db.SelectContext(ctx, &amounts, query, loanID); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}

	return total, nil
}

func (r *paymentRepository) GetLatestPayment(ctx context.Context, loanID string) (*domain.Payment, error) {
	query := r.db.Rebind(`
		SELECT ` + paymentColumns + `
		FROM loan_payments
		WHERE loan_id = ?
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, loanID); err != nil {
		return nil, err
	}

	return &payment, nil
}
