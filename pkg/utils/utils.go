package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a decimal amount, ignoring surrounding whitespace
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

// ParseOptionalAmount returns nil for an empty string
func ParseOptionalAmount(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	amount, err := ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

// FormatAmount renders an amount with two decimal places
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
