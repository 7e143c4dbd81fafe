package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an immutable ledger entry recording one accepted repayment.
type Payment struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	LoanID       uuid.UUID       `json:"loan_id" db:"loan_id"`
	// Sequence is the 1-based position in the loan's ledger, assigned on insert.
	Sequence     int             `json:"sequence" db:"sequence"`
	AmountPaid   decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	PaidAt       time.Time       `json:"paid_at" db:"paid_at"`
}
