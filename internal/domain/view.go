package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Labels maps persisted states to the human-readable values shown to callers.
type Labels struct {
	Status     map[LoanStatus]string
	Completion map[bool]string
}

// DefaultLabels returns the stock label tables.
func DefaultLabels() Labels {
	return Labels{
		Status: map[LoanStatus]string{
			LoanStatusRequested: "Requested",
			LoanStatusApproved:  "Approved",
			LoanStatusRejected:  "Rejected",
			LoanStatusCompleted: "Completed",
		},
		Completion: map[bool]string{
			false: "Not Completed",
			true:  "Completed",
		},
	}
}

func (l Labels) StatusLabel(s LoanStatus) string {
	if label, ok := l.Status[s]; ok {
		return label
	}
	return s.String()
}

func (l Labels) CompletionLabel(completed bool) string {
	if label, ok := l.Completion[completed]; ok {
		return label
	}
	if completed {
		return "completed"
	}
	return "not completed"
}

// RepaymentEntry is one rendered ledger row; Installment is its 1-based
// position in chronological order.
type RepaymentEntry struct {
	Installment int       `json:"installment"`
	Amount      string    `json:"amount"`
	AmountLeft  string    `json:"amount_left"`
	PaidAt      time.Time `json:"pay_date"`
}

// LoanDetail is the presentation view of a loan together with its repayments.
type LoanDetail struct {
	Loan     *Loan      `json:"-"`
	Payments []*Payment `json:"-"`

	ID                uuid.UUID        `json:"id"`
	OwnerID           string           `json:"owner_id"`
	LoanAmount        string           `json:"loan_amount"`
	LoanTerm          int              `json:"loan_term"`
	InterestRate      string           `json:"interest_rate"`
	AmountPerWeek     string           `json:"amount_per_week"`
	AmountDue         string           `json:"amount_due"`
	ApplicationStatus string           `json:"application_status"`
	LoanCompleted     string           `json:"loan_completed"`
	AmountPaid        string           `json:"amount_paid"`
	Repayments        []RepaymentEntry `json:"repayments"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewLoanDetail renders a loan. payments must already be in ascending time order.
func NewLoanDetail(loan *Loan, payments []*Payment, labels Labels) *LoanDetail {
	totalPaid := decimal.Zero
	repayments := make([]RepaymentEntry, 0, len(payments))
	for i, p := range payments {
		totalPaid = totalPaid.Add(p.AmountPaid)
		repayments = append(repayments, RepaymentEntry{
			Installment: i + 1,
			Amount:      p.AmountPaid.StringFixed(2),
			AmountLeft:  p.BalanceAfter.StringFixed(2),
			PaidAt:      p.PaidAt,
		})
	}

	return &LoanDetail{
		Loan:              loan,
		Payments:          payments,
		ID:                loan.ID,
		OwnerID:           loan.OwnerID,
		LoanAmount:        loan.Principal.StringFixed(2),
		LoanTerm:          loan.TermWeeks,
		InterestRate:      loan.AnnualRate.String(),
		AmountPerWeek:     loan.WeeklyPayment.StringFixed(2),
		AmountDue:         loan.BalanceRemaining.StringFixed(2),
		ApplicationStatus: labels.StatusLabel(loan.Status),
		LoanCompleted:     labels.CompletionLabel(loan.Completed),
		AmountPaid:        totalPaid.StringFixed(2),
		Repayments:        repayments,
		CreatedAt:         loan.CreatedAt,
		UpdatedAt:         loan.UpdatedAt,
	}
}
