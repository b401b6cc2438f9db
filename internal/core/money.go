// Package core provides the ledger domain types and money handling.
//
// Amounts are integer minor units (cents) everywhere inside the module.
// Conversion to display units happens only at the HTTP boundary.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is a signed amount in minor units.
type Money struct {
	Cents int64
}

func Cents(c int64) Money { return Money{Cents: c} }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the minor-unit amount as a decimal.
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(m.Cents) }

// MarshalJSON writes the amount as integer minor units.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Cents)
}

// ToDisplay converts a minor-unit amount (possibly fractional after
// recurrence expansion) to display units rounded to the cent.
func ToDisplay(minor decimal.Decimal) decimal.Decimal {
	return minor.Div(hundred).Round(2)
}

// ParseDisplayAmount converts a signed display amount such as "-12.34" or
// "12,34" to minor units, rounding half away from zero on the third decimal.
func ParseDisplayAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, Invalid("parse amount", "amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, Invalid("parse amount", "invalid amount %q", s)
	}
	minor := d.Mul(hundred).Round(0)
	if !minor.IsInteger() || minor.Abs().GreaterThan(decimal.NewFromInt(1<<53)) {
		return Money{}, Invalid("parse amount", "amount %q out of range", s)
	}
	return Money{Cents: minor.IntPart()}, nil
}
