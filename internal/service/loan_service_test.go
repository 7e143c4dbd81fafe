package service

import (
	"context"
	"sync"
	"testing"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/metrics"
	customError "github.com/segyhp/loan-ledger/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func applyDefault(t *testing.T, env *testEnv, owner string) *domain.LoanDetail {
	t.Helper()
	detail, err := env.service.Apply(context.Background(), owner, &domain.ApplyLoanRequest{
		Amount: decimal.NewFromInt(500),
		Term:   5,
	})
	require.NoError(t, err)
	return detail
}

func TestLoanService_Apply(t *testing.T) {
	env := setupService(t)

	detail := applyDefault(t, env, "user-1")

	assert.Equal(t, "500.00", detail.LoanAmount)
	assert.Equal(t, 5, detail.LoanTerm)
	assert.Equal(t, "10", detail.InterestRate)
	assert.Equal(t, "100.58", detail.AmountPerWeek)
	assert.Equal(t, "502.90", detail.AmountDue)
	assert.Equal(t, "Requested", detail.ApplicationStatus)
	assert.Equal(t, "Not Completed", detail.LoanCompleted)
	assert.Equal(t, "0.00", detail.AmountPaid)
	assert.Empty(t, detail.Repayments)
	assert.Equal(t, []events.Type{events.TypeLoanApplied}, env.publisher.types())

	stored, err := env.loans.GetByID(context.Background(), detail.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusRequested, stored.Status)
}

func TestLoanService_Apply_ExplicitRate(t *testing.T) {
	env := setupService(t)

	detail, err := env.service.Apply(context.Background(), "user-1", &domain.ApplyLoanRequest{
		Amount:   decimal.NewFromInt(1000),
		Term:     1,
		Interest: dec("520"),
	})
	require.NoError(t, err)

	assert.Equal(t, "1100.00", detail.AmountPerWeek)
	assert.Equal(t, "1100.00", detail.AmountDue)
	assert.Equal(t, "520", detail.InterestRate)
}

func TestLoanService_Apply_InvalidTerms(t *testing.T) {
	env := setupService(t)

	_, err := env.service.Apply(context.Background(), "user-1", &domain.ApplyLoanRequest{
		Amount:   decimal.NewFromInt(500),
		Term:     0,
		Interest: dec("10"),
	})
	assert.True(t, customError.HasCode(err, customError.ErrCodeValidationFailed))
}

func TestLoanService_FullRepayment(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	applied := applyDefault(t, env, "user-1")
	loanID := applied.ID.String()

	approved, err := env.service.Approve(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, "Approved", approved.ApplicationStatus)

	var detail *domain.LoanDetail
	for i := 0; i < 5; i++ {
		detail, err = env.service.ReceivePayment(ctx, loanID, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, "Completed", detail.ApplicationStatus)
	assert.Equal(t, "Completed", detail.LoanCompleted)
	assert.Equal(t, "0.00", detail.AmountDue)
	assert.Equal(t, "502.90", detail.AmountPaid)
	require.Len(t, detail.Repayments, 5)
	expectedLeft := []string{"402.32", "301.74", "201.16", "100.58", "0.00"}
	for i, entry := range detail.Repayments {
		assert.Equal(t, i+1, entry.Installment)
		assert.Equal(t, "100.58", entry.Amount)
		assert.Equal(t, expectedLeft[i], entry.AmountLeft)
		if i > 0 {
			assert.True(t, entry.PaidAt.After(detail.Repayments[i-1].PaidAt))
		}
	}

	_, err = env.service.ReceivePayment(ctx, loanID, dec("1"))
	assert.True(t, customError.HasCode(err, customError.ErrCodeInvalidTransition))

	assert.Equal(t, []events.Type{
		events.TypeLoanApplied,
		events.TypeLoanApproved,
		events.TypePaymentReceived,
		events.TypePaymentReceived,
		events.TypePaymentReceived,
		events.TypePaymentReceived,
		events.TypePaymentReceived,
		events.TypeLoanCompleted,
	}, env.publisher.types())
}

func TestLoanService_PaymentBeforeApproval(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	applied := applyDefault(t, env, "user-1")

	_, err := env.service.ReceivePayment(ctx, applied.ID.String(), dec("100.58"))
	assert.True(t, customError.HasCode(err, customError.ErrCodeInvalidTransition))

	payments, err := env.payments.GetByLoanID(ctx, applied.ID.String())
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestLoanService_DecisionTransitions(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	t.Run("approve twice", func(t *testing.T) {
		applied := applyDefault(t, env, "user-1")
		_, err := env.service.Approve(ctx, applied.ID.String())
		require.NoError(t, err)

		_, err = env.service.Approve(ctx, applied.ID.String())
		assert.True(t, customError.HasCode(err, customError.ErrCodeInvalidTransition))
	})

	t.Run("reject then approve", func(t *testing.T) {
		applied := applyDefault(t, env, "user-1")
		rejected, err := env.service.Reject(ctx, applied.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "Rejected", rejected.ApplicationStatus)

		_, err = env.service.Approve(ctx, applied.ID.String())
		assert.True(t, customError.HasCode(err, customError.ErrCodeInvalidTransition))

		_, err = env.service.ReceivePayment(ctx, applied.ID.String(), nil)
		assert.True(t, customError.HasCode(err, customError.ErrCodeInvalidTransition))
	})

	t.Run("approve after approve-reject race", func(t *testing.T) {
		applied := applyDefault(t, env, "user-1")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); _, errs[0] = env.service.Approve(ctx, applied.ID.String()) }()
		go func() { defer wg.Done(); _, errs[1] = env.service.Reject(ctx, applied.ID.String()) }()
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				failures++
				assert.True(t, customError.HasCode(err, customError.ErrCodeInvalidTransition))
			}
		}
		assert.Equal(t, 1, failures)
	})

	t.Run("unknown loan", func(t *testing.T) {
		_, err := env.service.Approve(ctx, "00000000-0000-0000-0000-000000000000")
		assert.True(t, customError.HasCode(err, customError.ErrCodeLoanNotFound))

		_, err = env.service.Reject(ctx, "missing")
		assert.True(t, customError.HasCode(err, customError.ErrCodeLoanNotFound))
	})
}

func TestLoanService_Overpayment(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	applied := applyDefault(t, env, "user-1")
	loanID := applied.ID.String()
	_, err := env.service.Approve(ctx, loanID)
	require.NoError(t, err)

	_, err = env.service.ReceivePayment(ctx, loanID, dec("502.91"))
	require.Error(t, err)
	assert.True(t, customError.HasCode(err, customError.ErrCodeOverpaymentRejected))
	assert.Contains(t, err.Error(), "502.90")

	detail, err := env.service.GetLoanDetail(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, "502.90", detail.AmountDue)
	assert.Empty(t, detail.Repayments)

	stored, err := env.loans.GetByID(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestLoanService_NonPositivePayment(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	applied := applyDefault(t, env, "user-1")
	_, err := env.service.Approve(ctx, applied.ID.String())
	require.NoError(t, err)

	for _, amount := range []string{"0", "-5"} {
		_, err = env.service.ReceivePayment(ctx, applied.ID.String(), dec(amount))
		assert.True(t, customError.HasCode(err, customError.ErrCodeValidationFailed), amount)
	}
}

func TestLoanService_SubCentAmountsRejected(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	applied, err := env.service.Apply(ctx, "user-1", &domain.ApplyLoanRequest{
		Amount:   decimal.NewFromInt(100),
		Term:     1,
		Interest: dec("10.125"),
	})
	require.NoError(t, err)
	loanID := applied.ID.String()
	_, err = env.service.Approve(ctx, loanID)
	require.NoError(t, err)

	stored, err := env.loans.GetByID(ctx, loanID)
	require.NoError(t, err)
	assert.True(t, stored.AnnualRate.Equal(decimal.RequireFromString("10.125")))

	_, err = env.service.ReceivePayment(ctx, loanID, dec(stored.BalanceRemaining.Sub(decimal.RequireFromString("0.004")).String()))
	assert.True(t, customError.HasCode(err, customError.ErrCodeValidationFailed))

	after, err := env.loans.GetByID(ctx, loanID)
	require.NoError(t, err)
	assert.True(t, after.BalanceRemaining.Equal(stored.BalanceRemaining))
	assert.Equal(t, domain.LoanStatusApproved, after.Status)

	payments, err := env.payments.GetByLoanID(ctx, loanID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	for _, request := range []*domain.ApplyLoanRequest{
		{Amount: decimal.RequireFromString("500.005"), Term: 5},
		{Amount: decimal.NewFromInt(500), Term: 5, Interest: dec("10.1234567")},
	} {
		_, err := env.service.Apply(ctx, "user-1", request)
		assert.True(t, customError.HasCode(err, customError.ErrCodeValidationFailed))
	}
}

func TestLoanService_PartialAndExactPayments(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	applied := applyDefault(t, env, "user-1")
	loanID := applied.ID.String()
	_, err := env.service.Approve(ctx, loanID)
	require.NoError(t, err)

	detail, err := env.service.ReceivePayment(ctx, loanID, dec("2.90"))
	require.NoError(t, err)
	assert.Equal(t, "500.00", detail.AmountDue)
	assert.Equal(t, "Approved", detail.ApplicationStatus)

	detail, err = env.service.ReceivePayment(ctx, loanID, dec("500"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", detail.AmountDue)
	assert.Equal(t, "Completed", detail.ApplicationStatus)
	assert.Equal(t, "502.90", detail.AmountPaid)
}

func TestLoanService_PreviewInstallment(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	custom, err := env.service.Apply(ctx, "user-1", &domain.ApplyLoanRequest{
		Amount:   decimal.NewFromInt(2000),
		Term:     25,
		Interest: dec("15"),
	})
	require.NoError(t, err)

	tests := []struct {
		name            string
		request         domain.CalculateInstallmentRequest
		loanID          string
		expectedRate    string
		expectedPayment string
	}{
		{
			name:            "configured default",
			request:         domain.CalculateInstallmentRequest{Amount: decimal.NewFromInt(500), Term: 5},
			expectedRate:    "10",
			expectedPayment: "100.58",
		},
		{
			name:            "existing loan rate",
			request:         domain.CalculateInstallmentRequest{Amount: decimal.NewFromInt(2000), Term: 25},
			loanID:          custom.ID.String(),
			expectedRate:    "15",
			expectedPayment: "83.03",
		},
		{
			name:            "explicit rate overrides loan rate",
			request:         domain.CalculateInstallmentRequest{Amount: decimal.NewFromInt(500), Term: 5, Interest: dec("10")},
			loanID:          custom.ID.String(),
			expectedRate:    "10",
			expectedPayment: "100.58",
		},
		{
			name:            "unknown loan falls back to default",
			request:         domain.CalculateInstallmentRequest{Amount: decimal.NewFromInt(1000), Term: 52},
			loanID:          "00000000-0000-0000-0000-000000000000",
			expectedRate:    "10",
			expectedPayment: "20.23",
		},
		{
			name:            "zero rate",
			request:         domain.CalculateInstallmentRequest{Amount: decimal.NewFromInt(1000), Term: 3, Interest: dec("0")},
			expectedRate:    "0",
			expectedPayment: "333.33",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preview, err := env.service.PreviewInstallment(ctx, &tt.request, tt.loanID)
			require.NoError(t, err)
			assert.Equal(t, tt.request.Term, preview.Term)
			assert.Equal(t, tt.request.Amount.StringFixed(2), preview.Amount)
			assert.Equal(t, tt.expectedRate, preview.Rate)
			assert.Equal(t, tt.expectedPayment, preview.RepayInstallment)
		})
	}
}

func TestLoanService_ListLoans(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	first := applyDefault(t, env, "user-1")
	second := applyDefault(t, env, "user-1")
	applyDefault(t, env, "user-2")

	_, err := env.service.Approve(ctx, first.ID.String())
	require.NoError(t, err)
	_, err = env.service.ReceivePayment(ctx, first.ID.String(), nil)
	require.NoError(t, err)

	loans, err := env.service.ListLoans(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, second.ID, loans[0].ID)
	assert.Equal(t, first.ID, loans[1].ID)
	assert.Len(t, loans[1].Repayments, 1)

	none, err := env.service.ListLoans(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoanService_GetLoanDetail_NotFound(t *testing.T) {
	env := setupService(t)

	_, err := env.service.GetLoanDetail(context.Background(), "missing")
	assert.True(t, customError.HasCode(err, customError.ErrCodeLoanNotFound))
}

func TestLoanService_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	env := setupService(t, WithMetrics(m))
	ctx := context.Background()

	applied := applyDefault(t, env, "user-1")
	loanID := applied.ID.String()
	_, err := env.service.Approve(ctx, loanID)
	require.NoError(t, err)

	const attempts = 12
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.service.ReceivePayment(ctx, loanID, nil)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
			continue
		}
		code := customError.CodeOf(err)
		assert.Contains(t, []string{
			customError.ErrCodeInvalidTransition,
			customError.ErrCodeOverpaymentRejected,
		}, code)
	}
	assert.Equal(t, 5, accepted)

	detail, err := env.service.GetLoanDetail(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", detail.AmountDue)
	assert.Equal(t, "Completed", detail.ApplicationStatus)
	assert.Len(t, detail.Repayments, 5)
}
