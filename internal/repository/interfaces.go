package repository

import (
	"context"
	"errors"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrVersionConflict is returned when a loan row changed since it was read.
var ErrVersionConflict = errors.New("loan version conflict")

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID; sql.ErrNoRows when absent
	GetByID(ctx context.Context, loanID string) (*domain.Loan, error)

	// ListByOwner retrieves an owner's loans, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Loan, error)

	// ListByStatus retrieves loans in any of the given states
	ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error)

	// Update persists status changes guarded by the loan version
	Update(ctx context.Context, loan *domain.Loan) error

	// ApplyPayment persists the loan balance and the payment atomically
	ApplyPayment(ctx context.Context, loan *domain.Loan, payment *domain.Payment) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// GetByLoanID retrieves all payments for a loan, oldest first
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error)

	// GetTotalPaid calculates total amount paid for a loan
	GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error)

	// GetLatestPayment gets the most recent payment for a loan; sql.ErrNoRows when none
	GetLatestPayment(ctx context.Context, loanID string) (*domain.Payment, error)
}
