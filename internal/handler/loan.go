package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/auth"
	"github.com/segyhp/loan-ledger/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// LoanService is the lifecycle API the HTTP layer drives.
type LoanService interface {
	Apply(ctx context.Context, ownerID string, request *domain.ApplyLoanRequest) (*domain.LoanDetail, error)
	PreviewInstallment(ctx context.Context, request *domain.CalculateInstallmentRequest, loanID string) (*domain.InstallmentPreview, error)
	Approve(ctx context.Context, loanID string) (*domain.LoanDetail, error)
	Reject(ctx context.Context, loanID string) (*domain.LoanDetail, error)
	ReceivePayment(ctx context.Context, loanID string, amount *decimal.Decimal) (*domain.LoanDetail, error)
	GetLoanDetail(ctx context.Context, loanID string) (*domain.LoanDetail, error)
	ListLoans(ctx context.Context, ownerID string) ([]*domain.LoanDetail, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
	}
}

// newValidator compares decimals numerically in gt/gte tags and rejects
// amounts finer than a cent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	// Field tags only see the float form, so precision is checked on the struct.
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		request := sl.Current().Interface().(domain.ApplyLoanRequest)
		validateTerms(sl, request.Amount, request.Interest)
	}, domain.ApplyLoanRequest{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		request := sl.Current().Interface().(domain.CalculateInstallmentRequest)
		validateTerms(sl, request.Amount, request.Interest)
	}, domain.CalculateInstallmentRequest{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		request := sl.Current().Interface().(domain.RepaymentRequest)
		if request.Payment != nil && !domain.IsWholeCents(*request.Payment) {
			sl.ReportError(request.Payment, "Payment", "payment", "cents", "")
		}
	}, domain.RepaymentRequest{})

	return v
}

func validateTerms(sl validator.StructLevel, amount decimal.Decimal, interest *decimal.Decimal) {
	if !domain.IsWholeCents(amount) {
		sl.ReportError(amount, "Amount", "amount", "cents", "")
	}
	if interest != nil && !domain.HasRatePrecision(*interest) {
		sl.ReportError(interest, "Interest", "interest", "rateprecision", "")
	}
}

// Apply handles POST /loans/apply
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing bearer token")
		return
	}

	var request domain.ApplyLoanRequest
	if !h.decodeAndValidate(w, r, &request) {
		return
	}

	detail, err := h.service.Apply(r.Context(), ownerID, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, domain.ApplyLoanResponse{
		LoanID:        detail.ID,
		LoanInfo:      detail,
		AmountPerWeek: detail.AmountPerWeek,
	})
}

// Calculate handles POST /loans/calculate and /loans/calculate/{loanId}
func (h *LoanHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var request domain.CalculateInstallmentRequest
	if !h.decodeAndValidate(w, r, &request) {
		return
	}

	preview, err := h.service.PreviewInstallment(r.Context(), &request, mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, preview)
}

// ListLoans handles GET /loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing bearer token")
		return
	}

	loans, err := h.service.ListLoans(r.Context(), ownerID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loans)
}

// GetLoan handles GET /loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetLoanDetail(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, detail)
}

// Approve handles POST /loans/{loanId}/approve
func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Approve(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, detail)
}

// Reject handles POST /loans/{loanId}/reject
func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Reject(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, detail)
}

// Repayment handles POST /loans/{loanId}/repayment. An empty body pays the
// weekly installment.
func (h *LoanHandler) Repayment(w http.ResponseWriter, r *http.Request) {
	var request domain.RepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	detail, err := h.service.ReceivePayment(r.Context(), mux.Vars(r)["loanId"], request.Payment)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, detail)
}

func (h *LoanHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, request interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}
	if err := h.validator.Struct(request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}
	return true
}
