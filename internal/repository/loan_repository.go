package repository

import (
	"context"
	"fmt"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, owner_id, principal, term_weeks, annual_rate, weekly_payment, balance_remaining, status, completed, version, created_at, updated_at`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := r.db.Rebind(`
		INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		loan.ID.String(),
		loan.OwnerID,
		loan.Principal.String(),
		loan.TermWeeks,
		loan.AnnualRate.String(),
		loan.WeeklyPayment.String(),
		loan.BalanceRemaining.String(),
		int(loan.Status),
		loan.Completed,
		loan.Version,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE id = ?
	`)

	var loan domain.Loan
	err := r.db.GetContext(ctx, &loan, query, loanID)
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`)

	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, query, ownerID); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	loans := []*domain.Loan{}
	if len(statuses) == 0 {
		return loans, nil
	}

	codes := make([]int, 0, len(statuses))
	for _, status := range statuses {
		codes = append(codes, int(status))
	}

	query, args, err := sqlx.In(`
		SELECT `+loanColumns+`
		FROM loans
		WHERE status IN (?)
		ORDER BY created_at, id
	`, codes)
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &loans, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	return r.updateVersioned(ctx, r.db, loan)
}

func (r *loanRepository) ApplyPayment(ctx context.Context, loan *domain.Loan, payment *domain.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.updateVersioned(ctx, tx, loan); err != nil {
		return err
	}

	// The loan row is already locked by the versioned update, so the next
	// sequence cannot be taken by a concurrent payment.
	var sequence int
	next := tx.Rebind(`SELECT COALESCE(MAX(sequence), 0) + 1 FROM loan_payments WHERE loan_id = ?`)
	if err := tx.GetContext(ctx, &sequence, next, payment.LoanID.String()); err != nil {
		loan.Version--
		return fmt.Errorf("next payment sequence: %w", err)
	}

	query := tx.Rebind(`
		INSERT INTO loan_payments (id, loan_id, sequence, amount_paid, balance_after, paid_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err = tx.ExecContext(ctx, query,
		payment.ID.String(),
		payment.LoanID.String(),
		sequence,
		payment.AmountPaid.String(),
		payment.BalanceAfter.String(),
		payment.PaidAt,
	)
	if err != nil {
		loan.Version--
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		loan.Version--
		return err
	}

	payment.Sequence = sequence
	return nil
}

// updateVersioned writes the mutable loan fields only if the stored version
// still matches, then bumps loan.Version.
func (r *loanRepository) updateVersioned(ctx context.Context, exec sqlx.ExtContext, loan *domain.Loan) error {
	query := exec.Rebind(`
		UPDATE loans
		SET balance_remaining = ?, status = ?, completed = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`)

	result, err := exec.ExecContext(ctx, query,
		loan.BalanceRemaining.String(),
		int(loan.Status),
		loan.Completed,
		loan.UpdatedAt,
		loan.ID.String(),
		loan.Version,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	loan.Version++
	return nil
}
