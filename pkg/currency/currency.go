package currency

import (
	"regexp"
	"strings"
)

// Code is an ISO-4217-like three letter currency code.
type Code string

const (
	EUR Code = "EUR"
	USD Code = "USD"
	GBP Code = "GBP"
	CHF Code = "CHF"
)

// DefaultCurrency is used when an account is opened without a currency.
const DefaultCurrency = EUR

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// IsValidFormat reports whether code is three upper-case ASCII letters.
func IsValidFormat(code string) bool {
	return codePattern.MatchString(code)
}

// Parse normalizes s (trim + upper-case) and validates its format. An empty
// input yields DefaultCurrency.
func Parse(s string) (Code, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultCurrency, true
	}
	if !IsValidFormat(s) {
		return "", false
	}
	return Code(s), true
}

func (c Code) String() string {
	return string(c)
}
