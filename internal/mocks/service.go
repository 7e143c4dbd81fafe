package mocks

import (
	"context"

	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) Apply(ctx context.Context, ownerID string, request *domain.ApplyLoanRequest) (*domain.LoanDetail, error) {
	args := m.Called(ctx, ownerID, request)
	return detailOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) PreviewInstallment(ctx context.Context, request *domain.CalculateInstallmentRequest, loanID string) (*domain.InstallmentPreview, error) {
	args := m.Called(ctx, request, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentPreview), args.Error(1)
}

func (m *MockLoanService) Approve(ctx context.Context, loanID string) (*domain.LoanDetail, error) {
	args := m.Called(ctx, loanID)
	return detailOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) Reject(ctx context.Context, loanID string) (*domain.LoanDetail, error) {
	args := m.Called(ctx, loanID)
	return detailOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) ReceivePayment(ctx context.Context, loanID string, amount *decimal.Decimal) (*domain.LoanDetail, error) {
	args := m.Called(ctx, loanID, amount)
	return detailOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) GetLoanDetail(ctx context.Context, loanID string) (*domain.LoanDetail, error) {
	args := m.Called(ctx, loanID)
	return detailOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, ownerID string) ([]*domain.LoanDetail, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanDetail), args.Error(1)
}

func detailOrNil(v interface{}) *domain.LoanDetail {
	if v == nil {
		return nil
	}
	return v.(*domain.LoanDetail)
}

// NewMockLoanService creates a new mock loan service instance
func NewMockLoanService() *MockLoanService {
	return &MockLoanService{}
}
