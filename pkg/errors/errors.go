package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrInvalidTransition   = errors.New("operation not permitted in current loan state")
	ErrOverpaymentRejected = errors.New("payment exceeds remaining balance")
	ErrConcurrentUpdate    = errors.New("loan was modified concurrently")
	ErrInternalFault       = errors.New("internal fault")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeOverpaymentRejected = "OVERPAYMENT_REJECTED"
	ErrCodeConcurrentUpdate    = "CONCURRENT_UPDATE"
	ErrCodeInternalFault       = "INTERNAL_FAULT"
)

// CodeOf returns the code of the first BusinessError in err's chain, or
// ErrCodeInternalFault when there is none.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeInternalFault
}

// HasCode reports whether err carries the given business error code.
func HasCode(err error, code string) bool {
	var be *BusinessError
	return errors.As(err, &be) && be.Code == code
}

// Wrap common errors with business context
func WrapValidationFailed(message string, err error) *BusinessError {
	if err == nil {
		err = ErrValidationFailed
	}
	return NewBusinessError(ErrCodeValidationFailed, message, err)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapInvalidTransition(loanID, operation, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot %s loan %s while it is %s", operation, loanID, status),
		ErrInvalidTransition,
	)
}

func WrapOverpaymentRejected(balance, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpaymentRejected,
		fmt.Sprintf("Remaining balance is %s but payment of %s was submitted; resubmit with an amount no greater than the balance", balance, amount),
		ErrOverpaymentRejected,
	)
}

func WrapConcurrentUpdate(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentUpdate,
		fmt.Sprintf("Loan with ID %s was modified by another request", loanID),
		ErrConcurrentUpdate,
	)
}

func WrapInternalFault(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInternalFault,
		"internal operation failed",
		errors.Join(ErrInternalFault, err),
	)
}
