package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mybudget/internal/core"
)

type fakeReportStore struct {
	rows      []core.RecurringRow
	totals    []core.CategoryTotal
	tags      []core.TagTotal
	err       error
	lastMonth *core.Month
}

func (f *fakeReportStore) RecurringRows(_ context.Context, _ int64, month *core.Month) ([]core.RecurringRow, error) {
	f.lastMonth = month
	if f.err != nil {
		return nil, f.err
	}
	if month == nil {
		return f.rows, nil
	}
	var out []core.RecurringRow
	for _, r := range f.rows {
		if r.Date.Month() == *month {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReportStore) CategoryTotals(context.Context, int64) ([]core.CategoryTotal, error) {
	return f.totals, f.err
}

func (f *fakeReportStore) TagTotals(context.Context, int64) ([]core.TagTotal, error) {
	return f.tags, f.err
}

func (f *fakeReportStore) CategoryStats(_ context.Context, _, categoryID int64) (core.CategoryStats, error) {
	return core.CategoryStats{CategoryID: categoryID}, f.err
}

func row(typ core.TransactionType, freq core.Frequency, date string, cents int64) core.RecurringRow {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.RecurringRow{Type: typ, Frequency: freq, Date: d, Amount: core.Cents(cents)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummary(t *testing.T) {
	store := &fakeReportStore{rows: []core.RecurringRow{
		row(core.TypeIncome, core.Monthly, "2025-01-01", 300000),
		row(core.TypeExpense, core.Weekly, "2025-01-05", -10000),
		row(core.TypeExpense, core.OneTime, "2025-02-10", -5000),
		row(core.TypeExpense, core.Yearly, "2025-02-01", -120000),
	}}
	svc := NewReportService(store)

	tests := []struct {
		name        string
		month       *core.Month
		wantIncome  string
		wantExpense string
	}{
		{"all rows", nil, "300000", "58450"},
		{"january", &core.Month{Year: 2025, Month: time.January}, "300000", "43450"},
		{"february", &core.Month{Year: 2025, Month: time.February}, "0", "15000"},
		{"empty month", &core.Month{Year: 2024, Month: time.June}, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.Summary(context.Background(), 1, tt.month)
			if err != nil {
				t.Fatalf("Summary() error = %v", err)
			}
			if !s.Income.Equal(dec(tt.wantIncome)) {
				t.Errorf("income = %s, want %s", s.Income, tt.wantIncome)
			}
			if !s.Expense.Equal(dec(tt.wantExpense)) {
				t.Errorf("expense = %s, want %s", s.Expense, tt.wantExpense)
			}
			if !s.Net.Equal(s.Income.Sub(s.Expense)) {
				t.Errorf("net = %s, want income - expense", s.Net)
			}
		})
	}
}

func TestSummaryRefundLowersExpense(t *testing.T) {
	store := &fakeReportStore{rows: []core.RecurringRow{
		row(core.TypeExpense, core.OneTime, "2025-03-02", -8000),
		row(core.TypeExpense, core.OneTime, "2025-03-09", 3000),
		row(core.TypeIncome, core.OneTime, "2025-03-15", 10000),
	}}
	s, err := NewReportService(store).Summary(context.Background(), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Expense.Equal(dec("5000")) || !s.Income.Equal(dec("10000")) || !s.Net.Equal(dec("5000")) {
		t.Errorf("summary = income %s expense %s net %s, want 10000/5000/5000", s.Income, s.Expense, s.Net)
	}

	buckets, err := ExpandMonthly(store.rows, core.Month{Year: 2025, Month: time.March}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !buckets[0].Expense.Equal(dec("5000")) {
		t.Errorf("march expense = %s, want 5000", buckets[0].Expense)
	}
}

func TestSummaryStoreError(t *testing.T) {
	svc := NewReportService(&fakeReportStore{err: errors.New("boom")})
	if _, err := svc.Summary(context.Background(), 1, nil); err == nil {
		t.Error("expected error")
	}
}

func TestExpandMonthlyWeekly(t *testing.T) {
	rows := []core.RecurringRow{row(core.TypeExpense, core.Weekly, "2025-03-01", -100)}
	start := core.Month{Year: 2025, Month: time.January}

	buckets, err := ExpandMonthly(rows, start, 12)
	if err != nil {
		t.Fatalf("ExpandMonthly() error = %v", err)
	}
	if len(buckets) != 12 {
		t.Fatalf("got %d buckets, want 12", len(buckets))
	}
	for i, b := range buckets {
		want := dec("434.5")
		if b.Month.Before(core.Month{Year: 2025, Month: time.March}) {
			want = decimal.Zero
		}
		if !b.Expense.Equal(want) {
			t.Errorf("bucket %d (%s) expense = %s, want %s", i, b.Month, b.Expense, want)
		}
		if !b.Income.IsZero() {
			t.Errorf("bucket %d income = %s, want 0", i, b.Income)
		}
	}
}

func TestExpandMonthlyOneTime(t *testing.T) {
	rows := []core.RecurringRow{row(core.TypeIncome, core.OneTime, "2025-03-15", 5000)}
	buckets, err := ExpandMonthly(rows, core.Month{Year: 2025, Month: time.January}, 12)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range buckets {
		want := decimal.Zero
		if b.Month.String() == "2025-03" {
			want = dec("5000")
		}
		if !b.Income.Equal(want) {
			t.Errorf("%s income = %s, want %s", b.Month, b.Income, want)
		}
	}
}

func TestExpandMonthlyYearBoundary(t *testing.T) {
	buckets, err := ExpandMonthly(nil, core.Month{Year: 2025, Month: time.November}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-11", "2025-12", "2026-01"}
	for i, b := range buckets {
		if b.Month.String() != want[i] {
			t.Errorf("bucket %d = %s, want %s", i, b.Month, want[i])
		}
	}
}

func TestMonthlySeriesDefaults(t *testing.T) {
	svc := NewReportService(&fakeReportStore{})
	svc.now = func() time.Time { return time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC) }

	buckets, err := svc.MonthlySeries(context.Background(), 1, core.Month{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 12 {
		t.Fatalf("got %d buckets, want 12", len(buckets))
	}
	if buckets[0].Month.String() != "2025-07" || buckets[11].Month.String() != "2026-06" {
		t.Errorf("series spans %s..%s", buckets[0].Month, buckets[11].Month)
	}
}

func TestDashboard(t *testing.T) {
	store := &fakeReportStore{
		rows:   []core.RecurringRow{row(core.TypeIncome, core.Monthly, "2025-01-01", 1000)},
		totals: []core.CategoryTotal{{CategoryID: 1, Name: "Food", Total: core.Cents(-10)}},
	}
	svc := NewReportService(store)

	month := core.Month{Year: 2025, Month: time.January}
	d, err := svc.Dashboard(context.Background(), 1, &month)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if !d.Summary.Income.Equal(dec("1000")) {
		t.Errorf("summary income = %s", d.Summary.Income)
	}
	if len(d.Monthly) != 12 || d.Monthly[0].Month != month {
		t.Errorf("monthly series starts at %v with %d buckets", d.Monthly[0].Month, len(d.Monthly))
	}
	if len(d.Categories) != 1 {
		t.Errorf("categories = %+v", d.Categories)
	}
}

func TestDashboardPropagatesError(t *testing.T) {
	svc := NewReportService(&fakeReportStore{err: core.StorageFailure("report", errors.New("locked"), true)})
	_, err := svc.Dashboard(context.Background(), 1, nil)
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("Dashboard() error = %v, want storage failure", err)
	}
}

func TestSummaryAgainstStore(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	weekly := f.request(line(&f.food.ID, -100))
	weekly.Frequency = core.Weekly
	weekly.Date = "2025-03-01"
	if _, err := f.writer.Create(ctx, weekly); err != nil {
		t.Fatal(err)
	}
	transfer := f.request(line(nil, -999))
	transfer.Type = core.TypeTransfer
	if _, err := f.writer.Create(ctx, transfer); err != nil {
		t.Fatal(err)
	}

	svc := NewReportService(f.store)
	s, err := svc.Summary(ctx, f.budget.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Expense.Equal(dec("434.5")) || !s.Income.IsZero() {
		t.Errorf("summary = income %s expense %s", s.Income, s.Expense)
	}
	if got := core.ToDisplay(s.Expense); !got.Equal(dec("4.35")) {
		t.Errorf("display expense = %s, want 4.35", got)
	}
}
