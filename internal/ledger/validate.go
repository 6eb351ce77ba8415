package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	pinLength         = 4
	minUsernameLength = 3
	minPasswordLength = 4

	// Amounts carry at most two fractional digits and stay below maxAmount.
	minAmountExponent = -2
	maxAmountExponent = 15
)

var maxAmount = decimal.New(1, maxAmountExponent)

// IsValidPin reports whether pin is exactly four decimal digits.
func IsValidPin(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// IsValidAmount reports whether amount can be moved: strictly positive, no more than two
// decimal places and below 10^15. The exponent is checked before any arithmetic so an
// extreme scale is rejected without rescaling.
func IsValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	exp := amount.Exponent()
	if exp < minAmountExponent || exp > maxAmountExponent {
		return false
	}
	return amount.LessThan(maxAmount)
}

// IsValidUsername requires at least three characters and no whitespace.
func IsValidUsername(username string) bool {
	if utf8.RuneCountInString(username) < minUsernameLength {
		return false
	}
	return !strings.ContainsFunc(username, unicode.IsSpace)
}

func IsValidPassword(password string) bool {
	return utf8.ValidString(password) && utf8.RuneCountInString(password) >= minPasswordLength
}

func IsValidAccountType(t AccountType) bool {
	switch t {
	case Savings, Current:
		return true
	default:
		return false
	}
}
