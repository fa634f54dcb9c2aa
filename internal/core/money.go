// Package core provides the ledger's domain types.
//
// This file contains the Money type: an exact decimal amount backed by
// shopspring/decimal, with parsing for user input and conversions to the
// persisted (TEXT) and display forms.
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used by Format when no currency code is given.
const DefaultCurrency = "EUR"

// Money is an exact decimal amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero returns a zero amount.
func Zero() Money { return Money{} }

// MustMoney parses a canonical decimal string and panics on error.
// Intended for constants and tests.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromString parses the persisted representation, which may be signed.
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// ParseAmount parses a user-supplied, non-negative decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, thousands separators and empty strings are rejected with
// ErrInvalidAmount. Zero is a valid amount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("0")     -> 0, nil
//	ParseAmount("-1")    -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, fmt.Errorf("%w: %q must be unsigned", ErrInvalidAmount, s)
	}
	return parseDecimal(s)
}

// ParseBalance parses an opening balance. Unlike ParseAmount it allows a
// leading minus sign, since an account may be opened overdrawn.
func ParseBalance(s string) (Money, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	m, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if neg {
		return m.Neg(), nil
	}
	return m, nil
}

func parseDecimal(s string) (Money, error) {
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	if digits == 0 || dots > 1 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

func (m Money) Add(n Money) Money        { return Money{d: m.d.Add(n.d)} }
func (m Money) Sub(n Money) Money        { return Money{d: m.d.Sub(n.d)} }
func (m Money) Neg() Money               { return Money{d: m.d.Neg()} }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) Equal(n Money) bool       { return m.d.Equal(n.d) }
func (m Money) Cmp(n Money) int          { return m.d.Cmp(n.d) }
func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) GreaterThan(n Money) bool { return m.d.GreaterThan(n.d) }

// String returns the canonical decimal text used for persistence.
func (m Money) String() string {
	return m.d.String()
}

// Format renders the amount with the currency's symbol and fraction digits.
func (m Money) Format(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	cur := gomoney.GetCurrency(currency)
	if cur == nil {
		cur = gomoney.GetCurrency(DefaultCurrency)
		currency = DefaultCurrency
	}
	minor := m.d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return gomoney.New(minor, currency).Display()
}

// Value implements driver.Valuer; amounts are stored as decimal TEXT.
func (m Money) Value() (driver.Value, error) {
	return m.d.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := MoneyFromString(v)
		if err != nil {
			return err
		}
		*m = parsed
	case []byte:
		parsed, err := MoneyFromString(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case int64:
		*m = Money{d: decimal.NewFromInt(v)}
	case nil:
		*m = Money{}
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
	return nil
}
