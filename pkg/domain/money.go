package domain

import (
	"fmt"

	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// Money is an amount in minor currency units (pesewas). All balance arithmetic
// stays integral; floats never touch money paths.
type Money int64

// ParseMoney validates an amount arriving from external input.
// Errors: CodeInvalidInput when the amount is not strictly positive.
func ParseMoney(minorUnits int64) (Money, error) {
	if minorUnits <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	return Money(minorUnits), nil
}

// String renders the amount in major units for logs and error messages.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%sGHS %d.%02d", sign, v/100, v%100)
}

// Int64 exposes the raw minor-unit value for persistence.
func (m Money) Int64() int64 { return int64(m) }

// BasisPoints expresses a return rate as an integral fraction of 1/10000 so
// expected-return computation avoids float drift.
type BasisPoints int32

// ApplyReturn computes principal plus the rate applied to it, truncating
// toward zero. amount * (1 + rate/10000).
func (bps BasisPoints) ApplyReturn(amount Money) Money {
	return amount + Money(int64(amount)*int64(bps)/10_000)
}
