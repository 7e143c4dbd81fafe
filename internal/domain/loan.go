package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the persisted lifecycle stage of a loan.
type LoanStatus int

const (
	LoanStatusRequested LoanStatus = iota
	LoanStatusApproved
	LoanStatusRejected
	LoanStatusCompleted
)

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusRequested:
		return "requested"
	case LoanStatusApproved:
		return "approved"
	case LoanStatusRejected:
		return "rejected"
	case LoanStatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusRejected || s == LoanStatusCompleted
}

// Lifecycle errors
var (
	ErrInvalidTransition    = errors.New("invalid loan status transition")
	ErrOverpayment          = errors.New("payment exceeds remaining balance")
	ErrInvalidPaymentAmount = errors.New("payment amount must be a positive whole number of cents")
	ErrFractionalCents      = errors.New("amount has more than two decimal places")
	ErrRatePrecision        = errors.New("annual rate has more than six decimal places")
)

// RatePlaces is the number of decimal places an annual rate may carry.
const RatePlaces = 6

// IsWholeCents reports whether d has at most two decimal places.
func IsWholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// HasRatePrecision reports whether rate fits the stored rate precision.
func HasRatePrecision(rate decimal.Decimal) bool {
	return rate.Equal(rate.Round(RatePlaces))
}

// CheckTerms rejects a principal or rate that would be altered when stored.
func CheckTerms(principal, annualRate decimal.Decimal) error {
	if !IsWholeCents(principal) {
		return ErrFractionalCents
	}
	if !HasRatePrecision(annualRate) {
		return ErrRatePrecision
	}
	return nil
}

// Loan represents a loan application and its repayment state
type Loan struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OwnerID          string          `json:"owner_id" db:"owner_id"`
	Principal        decimal.Decimal `json:"principal" db:"principal"`
	TermWeeks        int             `json:"term_weeks" db:"term_weeks"`
	AnnualRate       decimal.Decimal `json:"annual_rate" db:"annual_rate"`
	WeeklyPayment    decimal.Decimal `json:"weekly_payment" db:"weekly_payment"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining" db:"balance_remaining"`
	Status           LoanStatus      `json:"status" db:"status"`
	Completed        bool            `json:"completed" db:"completed"`
	Version          int             `json:"version" db:"version"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// NewLoan creates a requested loan whose balance is the full repayable amount,
// weeklyPayment * termWeeks.
func NewLoan(ownerID string, principal decimal.Decimal, termWeeks int, annualRate, weeklyPayment decimal.Decimal, now time.Time) *Loan {
	return &Loan{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Principal:        principal,
		TermWeeks:        termWeeks,
		AnnualRate:       annualRate,
		WeeklyPayment:    weeklyPayment,
		BalanceRemaining: weeklyPayment.Mul(decimal.NewFromInt(int64(termWeeks))),
		Status:           LoanStatusRequested,
		Completed:        false,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Approve moves a requested loan to approved.
func (l *Loan) Approve(now time.Time) error {
	return l.decide(LoanStatusApproved, now)
}

// Reject moves a requested loan to rejected.
func (l *Loan) Reject(now time.Time) error {
	return l.decide(LoanStatusRejected, now)
}

func (l *Loan) decide(to LoanStatus, now time.Time) error {
	if l.Status != LoanStatusRequested {
		return ErrInvalidTransition
	}
	l.Status = to
	l.UpdatedAt = now
	return nil
}

// AcceptsPayments reports whether a repayment may be applied.
func (l *Loan) AcceptsPayments() bool {
	return l.Status == LoanStatusApproved && !l.Completed
}

// ApplyPayment deducts amount from the balance and returns the ledger entry to
// persist alongside the loan. The loan is marked completed in the same step when
// the balance reaches zero. On error the loan is left untouched.
func (l *Loan) ApplyPayment(amount decimal.Decimal, now time.Time) (*Payment, error) {
	if !l.AcceptsPayments() {
		return nil, ErrInvalidTransition
	}
	if !amount.IsPositive() || !IsWholeCents(amount) {
		return nil, ErrInvalidPaymentAmount
	}
	if amount.GreaterThan(l.BalanceRemaining) {
		return nil, ErrOverpayment
	}

	l.BalanceRemaining = l.BalanceRemaining.Sub(amount)
	l.UpdatedAt = now
	if l.BalanceRemaining.LessThanOrEqual(decimal.Zero) {
		l.Status = LoanStatusCompleted
		l.Completed = true
	}

	return &Payment{
		ID:           uuid.New(),
		LoanID:       l.ID,
		AmountPaid:   amount,
		BalanceAfter: l.BalanceRemaining,
		PaidAt:       now,
	}, nil
}

// TotalRepayable is the amount originally owed, weeklyPayment * termWeeks.
func (l *Loan) TotalRepayable() decimal.Decimal {
	return l.WeeklyPayment.Mul(decimal.NewFromInt(int64(l.TermWeeks)))
}

// DTOs for requests and responses

type ApplyLoanRequest struct {
	Amount   decimal.Decimal  `json:"amount" validate:"required,gt=0"`
	Term     int              `json:"term" validate:"required,gt=0"`
	Interest *decimal.Decimal `json:"interest" validate:"omitempty,gte=0"`
}

type CalculateInstallmentRequest struct {
	Amount   decimal.Decimal  `json:"amount" validate:"required,gt=0"`
	Term     int              `json:"term" validate:"required,gt=0"`
	Interest *decimal.Decimal `json:"interest" validate:"omitempty,gte=0"`
}

type RepaymentRequest struct {
	Payment *decimal.Decimal `json:"payment" validate:"omitempty,gt=0"`
}

type ApplyLoanResponse struct {
	LoanID        uuid.UUID   `json:"loan_id"`
	LoanInfo      *LoanDetail `json:"loan_info"`
	AmountPerWeek string      `json:"amount_per_week"`
}

// InstallmentPreview is the result of a what-if installment calculation.
type InstallmentPreview struct {
	Term             int    `json:"term"`
	Amount           string `json:"amount"`
	Rate             string `json:"rate"`
	RepayInstallment string `json:"repay_installment"`
}
