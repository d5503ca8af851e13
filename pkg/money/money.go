// Package money provides an exact decimal amount type for billing.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of decimal places for currency amounts.
const CurrencyScale = 2

// FeeScale is the number of decimal places for fee rates.
const FeeScale = 4

var (
	ErrNegativeAmount  = errors.New("negative_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
)

// Money is an exact decimal amount in a single ISO-4217 currency.
// The zero value is 0.00 with an empty currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money from a decimal amount, rounded to currency scale.
func New(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount.Round(CurrencyScale), Currency: currency}, nil
}

// Parse builds a Money from its decimal string form, e.g. "29.99".
func Parse(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return New(d, currency)
}

// MustParse is Parse for test fixtures and static configuration.
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns 0.00 in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Add returns m+other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m-other. Currencies must match.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// MulInt returns m multiplied by an integer quantity.
func (m Money) MulInt(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)), Currency: m.Currency}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// Equal reports amount and currency equality.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Round2 returns the amount rounded to currency scale.
func (m Money) Round2() Money {
	return Money{Amount: m.Amount.Round(CurrencyScale), Currency: m.Currency}
}

func (m Money) String() string {
	return m.Amount.StringFixed(CurrencyScale) + " " + m.Currency
}
