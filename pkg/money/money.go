// Package money holds the amount rules shared by every ledger operation.
package money

import (
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits a ledger amount may carry.
const Scale int32 = 2

var (
	// DefaultMinAmount is the smallest accepted transaction amount.
	DefaultMinAmount = decimal.RequireFromString("0.01")
	// DefaultMaxAmount is the transaction ceiling.
	DefaultMaxAmount = decimal.RequireFromString("1000000.00")
)

// Limits bounds a single transaction amount.
type Limits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultLimits returns the standard 0.01 .. 1,000,000.00 window.
func DefaultLimits() Limits {
	return Limits{Min: DefaultMinAmount, Max: DefaultMaxAmount}
}

// Validate checks amount against l. Checks run in order: minimum, ceiling,
// precision. Exceeding the ceiling is reported as TransactionLimitExceeded,
// everything else as InvalidAmount.
func (l Limits) Validate(amount decimal.Decimal) error {
	if amount.LessThan(l.Min) {
		return domain.Errorf(domain.KindInvalidAmount, "amount must be at least %s", l.Min.StringFixed(Scale))
	}
	if amount.GreaterThan(l.Max) {
		return domain.Errorf(domain.KindTransactionLimitExceeded, "amount exceeds the limit of %s", l.Max.StringFixed(Scale))
	}
	if !HasValidScale(amount) {
		return domain.Errorf(domain.KindInvalidAmount, "amount cannot have more than %d decimal places", Scale)
	}
	return nil
}

// Require rejects a missing amount and validates a present one.
func (l Limits) Require(amount *decimal.Decimal) error {
	if amount == nil {
		return domain.NewError(domain.KindInvalidAmount, "amount is required")
	}
	return l.Validate(*amount)
}

// HasValidScale reports whether amount is written with at most Scale
// fractional digits. Trailing zeros count: 10.000 has scale 3.
func HasValidScale(amount decimal.Decimal) bool {
	return amount.Exponent() >= -Scale
}

// ValidateOpeningBalance accepts zero or any positive amount with a valid
// scale.
func ValidateOpeningBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return domain.NewError(domain.KindInvalidAmount, "opening balance cannot be negative")
	}
	if !HasValidScale(balance) {
		return domain.Errorf(domain.KindInvalidAmount, "opening balance cannot have more than %d decimal places", Scale)
	}
	return nil
}
