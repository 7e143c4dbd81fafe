package amortization

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

const (
	DefaultWeeksPerYear = 52
	DefaultRateScale    = 100
)

var (
	// ErrInvalidInput is returned for non-positive principal or term, or a negative rate.
	ErrInvalidInput = errors.New("invalid amortization input")
	// ErrInstallmentTooSmall is returned when the installment rounds to zero.
	ErrInstallmentTooSmall = errors.New("installment rounds to zero")
)

// Calculator derives the fixed weekly installment of an amortized loan.
//
// Annual rates are whole-number percentages (10 means 10% a year). The periodic
// rate is annualRate / (WeeksPerYear * RateScale).
type Calculator struct {
	WeeksPerYear int
	RateScale    int
}

// NewCalculator returns a calculator with the given constants, falling back to
// 52 weeks and a percentage scale for non-positive values.
func NewCalculator(weeksPerYear, rateScale int) Calculator {
	if weeksPerYear <= 0 {
		weeksPerYear = DefaultWeeksPerYear
	}
	if rateScale <= 0 {
		rateScale = DefaultRateScale
	}
	return Calculator{WeeksPerYear: weeksPerYear, RateScale: rateScale}
}

// PeriodicRate converts an annual percentage rate into a fractional weekly rate.
func (c Calculator) PeriodicRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(decimal.NewFromInt(int64(c.periodsScale())))
}

// PeriodicPayment computes P * r * (1+r)^n / ((1+r)^n - 1) rounded half-up to
// two places. The rounded value is what balances are built from.
func (c Calculator) PeriodicPayment(principal, annualRate decimal.Decimal, termPeriods int) (decimal.Decimal, error) {
	if principal.LessThanOrEqual(decimal.Zero) || termPeriods <= 0 || annualRate.IsNegative() {
		return decimal.Zero, ErrInvalidInput
	}

	rate := c.PeriodicRate(annualRate)
	if rate.IsZero() {
		return nonZero(principal.Div(decimal.NewFromInt(int64(termPeriods))).Round(2))
	}

	// The power is taken in float64 and the result is brought back to decimal
	// before rounding. (1+r)^n - 1 goes through Expm1/Log1p so a tiny r is not
	// lost against the 1.
	r := rate.InexactFloat64()
	p := principal.InexactFloat64()
	growth := math.Expm1(float64(termPeriods) * math.Log1p(r))

	var payment float64
	switch {
	case growth == 0:
		payment = p / float64(termPeriods)
	case math.IsInf(growth, 1):
		payment = p * r
	default:
		payment = r * p * (growth + 1) / growth
	}

	if math.IsNaN(payment) || math.IsInf(payment, 0) || payment <= 0 {
		return decimal.Zero, ErrInvalidInput
	}

	return nonZero(decimal.NewFromFloat(payment).Round(2))
}

func nonZero(payment decimal.Decimal) (decimal.Decimal, error) {
	if !payment.IsPositive() {
		return decimal.Zero, ErrInstallmentTooSmall
	}
	return payment, nil
}

func (c Calculator) periodsScale() int {
	weeks, scale := c.WeeksPerYear, c.RateScale
	if weeks <= 0 {
		weeks = DefaultWeeksPerYear
	}
	if scale <= 0 {
		scale = DefaultRateScale
	}
	return weeks * scale
}
