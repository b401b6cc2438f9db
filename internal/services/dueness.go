// Package services provides business logic and orchestration services.
//
// This file implements the dueness rules behind the upcoming payments
// list. Each frequency has a rule that finds the first occurrence of a
// transaction on or after a given day.

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mybudget/internal/core"
)

const (
	defaultUpcomingDays = 30
	maxUpcomingDays     = 366
)

// DueRule is the strategy interface for finding the next occurrence.
type DueRule interface {
	// NextDue returns the first occurrence of a row anchored at anchor that
	// falls on or after from. ok is false when no such occurrence exists.
	NextDue(anchor, from core.Date) (due core.Date, ok bool)
}

// IntervalDue repeats every Days days from the anchor.
type IntervalDue struct {
	Days int
}

func (r IntervalDue) NextDue(anchor, from core.Date) (core.Date, bool) {
	if !anchor.Before(from.Time) {
		return anchor, true
	}
	gap := int(from.Sub(anchor.Time).Hours() / 24)
	steps := (gap + r.Days - 1) / r.Days
	return anchor.AddDays(steps * r.Days), true
}

// MonthlyDue falls on the anchor's day of month, clamped to the month end.
type MonthlyDue struct{}

func (MonthlyDue) NextDue(anchor, from core.Date) (core.Date, bool) {
	if !anchor.Before(from.Time) {
		return anchor, true
	}
	due := clampDay(from.Year(), from.Time.Month(), anchor.Day())
	if due.Before(from.Time) {
		next := time.Date(from.Year(), from.Time.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		due = clampDay(next.Year(), next.Month(), anchor.Day())
	}
	return due, true
}

// YearlyDue falls on the anchor's anniversary. February 29 becomes
// February 28 in common years.
type YearlyDue struct{}

func (YearlyDue) NextDue(anchor, from core.Date) (core.Date, bool) {
	if !anchor.Before(from.Time) {
		return anchor, true
	}
	due := clampDay(from.Year(), anchor.Time.Month(), anchor.Day())
	if due.Before(from.Time) {
		due = clampDay(from.Year()+1, anchor.Time.Month(), anchor.Day())
	}
	return due, true
}

// OneTimeDue is due on its own date only.
type OneTimeDue struct{}

func (OneTimeDue) NextDue(anchor, from core.Date) (core.Date, bool) {
	return anchor, !anchor.Before(from.Time)
}

func clampDay(year int, month time.Month, day int) core.Date {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return core.NewDate(year, int(month), day)
}

var dueRules = map[core.Frequency]DueRule{
	core.OneTime:     OneTimeDue{},
	core.Daily:       IntervalDue{Days: 1},
	core.Weekly:      IntervalDue{Days: 7},
	core.Fortnightly: IntervalDue{Days: 14},
	core.Monthly:     MonthlyDue{},
	core.Yearly:      YearlyDue{},
}

// GetDueRule returns the dueness rule for a frequency. The empty
// frequency is one-time.
func GetDueRule(frequency core.Frequency) (DueRule, error) {
	rule, ok := dueRules[frequency.OrDefault()]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return rule, nil
}

// Upcoming lists the next occurrence of every income and expense
// transaction due in [from, from+days). A zero from means today and
// days <= 0 means thirty days. Results are ordered by due date, then
// transaction id.
func (s *ReportService) Upcoming(ctx context.Context, budgetID int64, from core.Date, days int) ([]core.UpcomingPayment, error) {
	const op = "upcoming payments"
	if days <= 0 {
		days = defaultUpcomingDays
	}
	if days > maxUpcomingDays {
		return nil, core.Invalid(op, "days must be at most %d", maxUpcomingDays)
	}
	if from.IsZero() {
		now := s.now().UTC()
		from = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	end := from.AddDays(days)

	rows, err := s.store.RecurringRows(ctx, budgetID, nil)
	if err != nil {
		return nil, fmt.Errorf("load upcoming rows: %w", err)
	}

	out := []core.UpcomingPayment{}
	for _, r := range rows {
		rule, err := GetDueRule(r.Frequency)
		if err != nil {
			return nil, core.Invalid(op, "transaction %d: %s", r.TransactionID, err.Error())
		}
		due, ok := rule.NextDue(r.Date, from)
		if !ok || !due.Before(end.Time) {
			continue
		}
		out = append(out, core.UpcomingPayment{
			TransactionID: r.TransactionID,
			Notes:         r.Notes,
			Type:          r.Type,
			Frequency:     r.Frequency.OrDefault(),
			DueDate:       due,
			Amount:        r.Amount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out, nil
}
