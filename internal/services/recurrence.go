// Package services provides business logic and orchestration services.
//
// This file implements the recurrence rules used by the reports. Each
// frequency has a rule that turns a row amount into its month-equivalent
// and decides which report months the row contributes to.

package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mybudget/internal/core"
)

// RecurrenceRule is the strategy interface for recurrence expansion.
type RecurrenceRule interface {
	// MonthlyEquivalent converts a per-occurrence amount to a monthly figure.
	MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal
	// Covers reports whether a row anchored in anchor contributes to month.
	Covers(anchor, month core.Month) bool
}

// FactorRule multiplies the amount by a fixed factor and covers every month
// from the anchor month on.
type FactorRule struct {
	Factor decimal.Decimal
}

func (r FactorRule) MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.Factor)
}

func (FactorRule) Covers(anchor, month core.Month) bool {
	return !month.Before(anchor)
}

// YearlyRule spreads the amount over twelve months.
type YearlyRule struct{}

func (YearlyRule) MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(decimal.NewFromInt(12))
}

func (YearlyRule) Covers(anchor, month core.Month) bool {
	return !month.Before(anchor)
}

// OneTimeRule counts the amount once, in its own month only.
type OneTimeRule struct{}

func (OneTimeRule) MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal {
	return amount
}

func (OneTimeRule) Covers(anchor, month core.Month) bool {
	return anchor == month
}

var recurrenceRules = map[core.Frequency]RecurrenceRule{
	core.OneTime:     OneTimeRule{},
	core.Daily:       FactorRule{Factor: decimal.NewFromInt(30)},
	core.Weekly:      FactorRule{Factor: decimal.RequireFromString("4.345")},
	core.Fortnightly: FactorRule{Factor: decimal.RequireFromString("2.1725")},
	core.Monthly:     FactorRule{Factor: decimal.NewFromInt(1)},
	core.Yearly:      YearlyRule{},
}

// GetRecurrenceRule returns the rule for a frequency. The empty frequency
// is one-time.
func GetRecurrenceRule(frequency core.Frequency) (RecurrenceRule, error) {
	rule, ok := recurrenceRules[frequency.OrDefault()]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return rule, nil
}

// RegisterRecurrenceRule adds or replaces the rule for a frequency.
func RegisterRecurrenceRule(frequency core.Frequency, rule RecurrenceRule) {
	recurrenceRules[frequency] = rule
}
