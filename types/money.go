// Package types provides the monetary and timestamp types shared by the
// growth ledger packages.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Errors returned by FromMajor.
var (
	ErrNegativeAmount  = errors.New("money: negative amount")
	ErrAmountOverflow  = errors.New("money: amount overflows int64 minor units")
	ErrInvalidCurrency = errors.New("money: invalid ISO 4217 currency code")
)

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only; decimal major units are converted exactly
// once, at ingestion, by FromMajor.
//
// Examples:
//   - USD(2550) = $25.50 (2550 cents)
//   - EUR(19900) = €199.00
//   - JPY(100) = ¥100
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents, pence, etc)
	Currency string `json:"currency"` // ISO 4217 upper-case: "USD", "EUR", "TRY"
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "USD"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "EUR"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "JPY"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: NormalizeCurrency(currency)} }

// FromMajor converts a decimal amount in major units into Money, rounding
// half-up to the currency's minor unit. Negative amounts are rejected: a
// cleared ledger entry never carries a negative value.
func FromMajor(amount decimal.Decimal, currency string) (Money, error) {
	code := NormalizeCurrency(currency)
	if !ValidCurrency(code) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrNegativeAmount, amount.String())
	}

	places := int32(Decimals(code))
	// Round is half away from zero, which equals half-up for non-negative values.
	minor := amount.Round(places).Shift(places)
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Money{}, fmt.Errorf("%w: %s", ErrAmountOverflow, amount.String())
	}

	return Money{Amount: minor.IntPart(), Currency: code}, nil
}

// Major returns the amount expressed in major units.
func (m Money) Major() decimal.Decimal {
	return decimal.New(m.Amount, -int32(Decimals(m.Currency)))
}

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// FormatMajor returns the major unit string without currency symbol.
// For currencies with 2 decimal places: "25.50" for USD(2550).
// For currencies with 0 decimal places (JPY): "100" for JPY(100).
func (m Money) FormatMajor() string {
	decimals := Decimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	major := absAmount / divisor
	minor := absAmount % divisor

	format := fmt.Sprintf("%%d.%%0%dd", decimals)
	result := fmt.Sprintf(format, major, minor)

	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
// Examples: "$25.50", "€199.00", "₺12.00", "¥100"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidCurrency reports whether code is shaped like an ISO 4217 alphabetic code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Decimals returns the number of minor-unit decimal places for a currency.
func Decimals(currency string) int {
	switch NormalizeCurrency(currency) {
	case "JPY", "KRW", "VND", "CLP", "PYG", "IDR":
		return 0
	case "BHD", "KWD", "OMR", "TND", "JOD":
		return 3
	}
	// Most currencies have 2 decimal places
	return 2
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"USD": "$",
		"EUR": "€",
		"GBP": "£",
		"JPY": "¥",
		"TRY": "₺",
		"CAD": "C$",
		"AUD": "A$",
	}
	if sym, ok := symbols[NormalizeCurrency(currency)]; ok {
		return sym
	}
	return NormalizeCurrency(currency) + " "
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
