package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/lock"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultLockWait = 5 * time.Second

// Policy holds the lending constants fixed for the lifetime of the service.
type Policy struct {
	DefaultAnnualRate decimal.Decimal
	Calculator        amortization.Calculator
	Labels            domain.Labels
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultAnnualRate: decimal.NewFromInt(10),
		Calculator:        amortization.NewCalculator(amortization.DefaultWeeksPerYear, amortization.DefaultRateScale),
		Labels:            domain.DefaultLabels(),
	}
}

type Option func(*LoanService)

func WithPublisher(publisher events.Publisher) Option {
	return func(s *LoanService) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LoanService) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *LoanService) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *LoanService) { s.now = now }
}

// WithLockWait bounds how long a mutation waits for another writer on the
// same loan before giving up with CONCURRENT_UPDATE.
func WithLockWait(wait time.Duration) Option {
	return func(s *LoanService) { s.lockWait = wait }
}

type LoanService struct {
	LoanRepo    repository.LoanRepository
	PaymentRepo repository.PaymentRepository

	locker    lock.Locker
	policy    Policy
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	lockWait  time.Duration
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	locker lock.Locker,
	policy Policy,
	opts ...Option,
) *LoanService {
	s := &LoanService{
		LoanRepo:    loanRepo,
		PaymentRepo: paymentRepo,
		locker:      locker,
		policy:      policy,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		lockWait:    defaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(s.logger)
	}
	return s
}

// Apply registers a new loan in the Requested state.
func (s *LoanService) Apply(ctx context.Context, ownerID string, request *domain.ApplyLoanRequest) (*domain.LoanDetail, error) {
	rate := s.rateOrDefault(request.Interest, s.policy.DefaultAnnualRate)

	payment, err := s.installment(request.Amount, rate, request.Term)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loan := domain.NewLoan(ownerID, request.Amount, request.Term, rate, payment, now)

	if err := s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, s.internalFault("apply", loan.ID.String(), err)
	}

	s.metrics.LoanApplied()
	s.publish(ctx, events.NewEvent(events.TypeLoanApplied, loan, now))

	return domain.NewLoanDetail(loan, []*domain.Payment{}, s.policy.Labels), nil
}

// PreviewInstallment computes the installment for the given terms without
// persisting anything. When loanID names an existing loan its stored rate is
// the default; an unknown loanID falls back to the configured rate.
func (s *LoanService) PreviewInstallment(ctx context.Context, request *domain.CalculateInstallmentRequest, loanID string) (*domain.InstallmentPreview, error) {
	baseRate := s.policy.DefaultAnnualRate
	if loanID != "" {
		loan, err := s.LoanRepo.GetByID(ctx, loanID)
		switch {
		case err == nil:
			baseRate = loan.AnnualRate
		case !errors.Is(err, sql.ErrNoRows):
			return nil, s.internalFault("preview", loanID, err)
		}
	}

	rate := s.rateOrDefault(request.Interest, baseRate)

	payment, err := s.installment(request.Amount, rate, request.Term)
	if err != nil {
		return nil, err
	}

	return &domain.InstallmentPreview{
		Term:             request.Term,
		Amount:           request.Amount.StringFixed(2),
		Rate:             rate.String(),
		RepayInstallment: payment.StringFixed(2),
	}, nil
}

func (s *LoanService) Approve(ctx context.Context, loanID string) (*domain.LoanDetail, error) {
	return s.decide(ctx, loanID, "approve", (*domain.Loan).Approve, events.TypeLoanApproved)
}

func (s *LoanService) Reject(ctx context.Context, loanID string) (*domain.LoanDetail, error) {
	return s.decide(ctx, loanID, "reject", (*domain.Loan).Reject, events.TypeLoanRejected)
}

func (s *LoanService) decide(
	ctx context.Context,
	loanID, operation string,
	transition func(*domain.Loan, time.Time) error,
	eventType events.Type,
) (*domain.LoanDetail, error) {
	var detail *domain.LoanDetail

	err := s.withLoanLock(ctx, loanID, func() error {
		loan, err := s.loadLoan(ctx, loanID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := transition(loan, now); err != nil {
			return customError.WrapInvalidTransition(loanID, operation, s.policy.Labels.StatusLabel(loan.Status))
		}

		if err := s.LoanRepo.Update(ctx, loan); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return customError.WrapConcurrentUpdate(loanID)
			}
			return s.internalFault(operation, loanID, err)
		}

		s.metrics.Transition(loan.Status.String())
		s.publish(ctx, events.NewEvent(eventType, loan, now))

		detail, err = s.detail(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// ReceivePayment applies one repayment. A nil amount pays the weekly installment.
func (s *LoanService) ReceivePayment(ctx context.Context, loanID string, amount *decimal.Decimal) (*domain.LoanDetail, error) {
	var detail *domain.LoanDetail

	err := s.withLoanLock(ctx, loanID, func() error {
		loan, err := s.loadLoan(ctx, loanID)
		if err != nil {
			return err
		}

		paid := loan.WeeklyPayment
		if amount != nil {
			paid = *amount
		}

		now := s.now()
		balanceBefore := loan.BalanceRemaining
		payment, err := loan.ApplyPayment(paid, now)
		if err != nil {
			rejected := s.paymentRejection(loan, balanceBefore, paid, err)
			s.metrics.PaymentRejected(customError.CodeOf(rejected))
			return rejected
		}

		if err := s.LoanRepo.ApplyPayment(ctx, loan, payment); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return customError.WrapConcurrentUpdate(loanID)
			}
			return s.internalFault("repayment", loanID, err)
		}

		s.metrics.PaymentAccepted(paid)
		received := events.NewEvent(events.TypePaymentReceived, loan, now)
		received.Amount = paid.StringFixed(2)
		published := []events.Event{received}
		if loan.Completed {
			s.metrics.Transition(loan.Status.String())
			published = append(published, events.NewEvent(events.TypeLoanCompleted, loan, now))
		}
		s.publish(ctx, published...)

		detail, err = s.detail(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

func (s *LoanService) paymentRejection(loan *domain.Loan, balance, amount decimal.Decimal, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return customError.WrapInvalidTransition(loan.ID.String(), "repay", s.policy.Labels.StatusLabel(loan.Status))
	case errors.Is(err, domain.ErrInvalidPaymentAmount):
		return customError.WrapValidationFailed("payment must be a positive whole number of cents", err)
	case errors.Is(err, domain.ErrOverpayment):
		return customError.WrapOverpaymentRejected(balance.StringFixed(2), amount.StringFixed(2))
	default:
		return s.internalFault("repayment", loan.ID.String(), err)
	}
}

// GetLoanDetail returns the loan with its repayment history.
func (s *LoanService) GetLoanDetail(ctx context.Context, loanID string) (*domain.LoanDetail, error) {
	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, loan)
}

// ListLoans returns the owner's loans, newest first.
func (s *LoanService) ListLoans(ctx context.Context, ownerID string) ([]*domain.LoanDetail, error) {
	loans, err := s.LoanRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.internalFault("list", ownerID, err)
	}

	details := make([]*domain.LoanDetail, 0, len(loans))
	for _, loan := range loans {
		detail, err := s.detail(ctx, loan)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	return details, nil
}

func (s *LoanService) loadLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, s.internalFault("load", loanID, err)
	}
	return loan, nil
}

func (s *LoanService) detail(ctx context.Context, loan *domain.Loan) (*domain.LoanDetail, error) {
	payments, err := s.PaymentRepo.GetByLoanID(ctx, loan.ID.String())
	if err != nil {
		return nil, s.internalFault("detail", loan.ID.String(), err)
	}
	return domain.NewLoanDetail(loan, payments, s.policy.Labels), nil
}

func (s *LoanService) withLoanLock(ctx context.Context, loanID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, lock.LoanKey(loanID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return customError.WrapConcurrentUpdate(loanID)
		}
		return s.internalFault("lock", loanID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release loan lock", zap.String("loan_id", loanID), zap.Error(err))
		}
	}()

	return fn()
}

// installment computes the weekly payment for terms whose principal and rate
// survive storage unchanged.
func (s *LoanService) installment(principal, rate decimal.Decimal, term int) (decimal.Decimal, error) {
	if err := domain.CheckTerms(principal, rate); err != nil {
		return decimal.Zero, customError.WrapValidationFailed("loan terms exceed the stored precision", err)
	}
	payment, err := s.policy.Calculator.PeriodicPayment(principal, rate, term)
	if err != nil {
		return decimal.Zero, customError.WrapValidationFailed("loan terms do not produce a valid installment", err)
	}
	return payment, nil
}

func (s *LoanService) rateOrDefault(explicit *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if explicit != nil {
		return *explicit
	}
	return fallback
}

func (s *LoanService) publish(ctx context.Context, published ...events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), published...); err != nil {
		s.logger.Warn("failed to publish loan events", zap.Error(err))
	}
}

func (s *LoanService) internalFault(operation, subject string, err error) error {
	s.logger.Error("loan operation failed",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Error(err),
	)
	return customError.WrapInternalFault(err)
}
