// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing and percentage arithmetic go
// through shopspring/decimal so that no float rounding leaks into balances.
package core

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every amount shown to users.
const CurrencySymbol = "₱"

// maxCents keeps cents*100 style arithmetic well inside int64.
const maxCents = int64(1) << 53

type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money with half-up rounding on the
// third fractional digit. Only strictly positive values are accepted.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12.345") -> 1235 cents
//	ParseAmount("1,234.5") -> 123450 cents (grouping commas are dropped)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, CurrencySymbol)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return moneyFromPositive(d)
}

// MoneyFromDecimal rounds d to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

func moneyFromPositive(d decimal.Decimal) (Money, error) {
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThanOrEqual(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: cents.IntPart()}
	if m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents >= maxCents {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Percent returns m * pct / 100 rounded to cents.
func (m Money) Percent(pct int64) Money {
	return MoneyFromDecimal(m.Decimal().Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)))
}

// String renders the plain decimal form used in JSON and in AMOUNT: tokens.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Display renders the amount for humans, e.g. ₱1,234.56.
func (m Money) Display() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, CurrencySymbol, humanize.Comma(cents/100), cents%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. Zero and
// negative values decode fine; callers validate.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ErrInvalidAmount
	}
	*m = MoneyFromDecimal(d)
	return nil
}
