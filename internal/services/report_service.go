package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mybudget/internal/core"
)

const defaultSeriesLength = 12

// ReportStore is the read side the reports are built from.
type ReportStore interface {
	RecurringRows(ctx context.Context, budgetID int64, month *core.Month) ([]core.RecurringRow, error)
	CategoryTotals(ctx context.Context, budgetID int64) ([]core.CategoryTotal, error)
	TagTotals(ctx context.Context, budgetID int64) ([]core.TagTotal, error)
	CategoryStats(ctx context.Context, budgetID, categoryID int64) (core.CategoryStats, error)
}

// ReportService computes read-only aggregates. It holds no state of its
// own; every call reads the store.
type ReportService struct {
	store ReportStore
	now   func() time.Time
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store, now: time.Now}
}

// Summary totals income and expense for a budget, optionally restricted
// to rows dated within month. Recurring rows count at their monthly
// equivalent.
func (s *ReportService) Summary(ctx context.Context, budgetID int64, month *core.Month) (core.Summary, error) {
	rows, err := s.store.RecurringRows(ctx, budgetID, month)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load summary rows: %w", err)
	}

	income, expense, err := SummarizeRows(rows)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summary{
		BudgetID: budgetID,
		Month:    month,
		Income:   income,
		Expense:  expense,
		Net:      income.Sub(expense),
	}, nil
}

// MonthlySeries returns n consecutive month buckets starting at start. A
// zero start means the current month, n <= 0 means twelve months.
func (s *ReportService) MonthlySeries(ctx context.Context, budgetID int64, start core.Month, n int) ([]core.MonthBucket, error) {
	if start.IsZero() {
		start = core.MonthOf(s.now())
	}
	if n <= 0 {
		n = defaultSeriesLength
	}

	rows, err := s.store.RecurringRows(ctx, budgetID, nil)
	if err != nil {
		return nil, fmt.Errorf("load series rows: %w", err)
	}
	return ExpandMonthly(rows, start, n)
}

func (s *ReportService) CategoryTotals(ctx context.Context, budgetID int64) ([]core.CategoryTotal, error) {
	return s.store.CategoryTotals(ctx, budgetID)
}

func (s *ReportService) TagTotals(ctx context.Context, budgetID int64) ([]core.TagTotal, error) {
	return s.store.TagTotals(ctx, budgetID)
}

func (s *ReportService) CategoryStats(ctx context.Context, budgetID, categoryID int64) (core.CategoryStats, error) {
	return s.store.CategoryStats(ctx, budgetID, categoryID)
}

// Dashboard runs the summary, the series and the category totals
// concurrently.
func (s *ReportService) Dashboard(ctx context.Context, budgetID int64, month *core.Month) (core.Dashboard, error) {
	var d core.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.Summary(gctx, budgetID, month)
		d.Summary = summary
		return err
	})
	g.Go(func() error {
		start := core.Month{}
		if month != nil {
			start = *month
		}
		series, err := s.MonthlySeries(gctx, budgetID, start, defaultSeriesLength)
		d.Monthly = series
		return err
	})
	g.Go(func() error {
		totals, err := s.CategoryTotals(gctx, budgetID)
		d.Categories = totals
		return err
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Dashboard query failed", "budget_id", budgetID, "error", err)
		return core.Dashboard{}, err
	}
	return d, nil
}

// directedAmount orients a row amount along its type: income counts as
// posted, expense counts negated. A refund (positive expense) therefore
// lowers the expense total.
func directedAmount(r core.RecurringRow) decimal.Decimal {
	if r.Type == core.TypeExpense {
		return r.Amount.Decimal().Neg()
	}
	return r.Amount.Decimal()
}

// SummarizeRows returns income and expense totals in minor units.
func SummarizeRows(rows []core.RecurringRow) (income, expense decimal.Decimal, err error) {
	income, expense = decimal.Zero, decimal.Zero
	for _, r := range rows {
		rule, err := GetRecurrenceRule(r.Frequency)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		v := rule.MonthlyEquivalent(directedAmount(r))
		switch r.Type {
		case core.TypeIncome:
			income = income.Add(v)
		case core.TypeExpense:
			expense = expense.Add(v)
		}
	}
	return income, expense, nil
}

// ExpandMonthly spreads rows across n months from start. Rows never count
// before their anchor month; one-time rows count only in their own month.
func ExpandMonthly(rows []core.RecurringRow, start core.Month, n int) ([]core.MonthBucket, error) {
	buckets := make([]core.MonthBucket, n)
	for i := range buckets {
		buckets[i] = core.MonthBucket{Month: start.AddMonths(i), Income: decimal.Zero, Expense: decimal.Zero}
	}

	for _, r := range rows {
		rule, err := GetRecurrenceRule(r.Frequency)
		if err != nil {
			return nil, err
		}
		anchor := r.Date.Month()
		v := rule.MonthlyEquivalent(directedAmount(r))
		for i := range buckets {
			if !rule.Covers(anchor, buckets[i].Month) {
				continue
			}
			switch r.Type {
			case core.TypeIncome:
				buckets[i].Income = buckets[i].Income.Add(v)
			case core.TypeExpense:
				buckets[i].Expense = buckets[i].Expense.Add(v)
			}
		}
	}
	return buckets, nil
}
