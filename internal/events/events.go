// Package events announces committed loan lifecycle changes.
package events

import (
	"context"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLoanApplied     Type = "loan.applied"
	TypeLoanApproved    Type = "loan.approved"
	TypeLoanRejected    Type = "loan.rejected"
	TypePaymentReceived Type = "loan.payment_received"
	TypeLoanCompleted   Type = "loan.completed"
)

// Event is the message published after a state change has been committed.
// Amount is set only for payments.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	LoanID     uuid.UUID `json:"loan_id"`
	OwnerID    string    `json:"owner_id"`
	Amount     string    `json:"amount,omitempty"`
	Balance    string    `json:"balance"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent snapshots loan after a change of the given type.
func NewEvent(eventType Type, loan *domain.Loan, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		LoanID:     loan.ID,
		OwnerID:    loan.OwnerID,
		Balance:    loan.BalanceRemaining.StringFixed(2),
		Status:     loan.Status.String(),
		OccurredAt: occurredAt,
	}
}

// Publisher delivers events. Delivery is best effort: the ledger row is the
// source of truth and callers only log a failed publish.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}
