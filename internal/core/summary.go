package core

import "github.com/shopspring/decimal"

// Report values are minor units. Recurrence expansion can make them
// fractional, hence decimal rather than Money.

// Summary holds income, expense and net totals for a budget.
type Summary struct {
	BudgetID int64           `json:"budget_id"`
	Month    *Month          `json:"month,omitempty"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Net      decimal.Decimal `json:"net"`
}

// MonthBucket is one entry of the monthly series.
type MonthBucket struct {
	Month   Month           `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type CategoryTotal struct {
	CategoryID int64        `json:"category_id"`
	Name       string       `json:"name"`
	Type       CategoryType `json:"type"`
	Total      Money        `json:"total"`
}

type TagTotal struct {
	TagID int64  `json:"tag_id"`
	Name  string `json:"name"`
	Total Money  `json:"total"`
}

// CategoryStats gates category deletion.
type CategoryStats struct {
	CategoryID int64 `json:"category_id"`
	LineCount  int64 `json:"line_count"`
	Total      Money `json:"total"`
}

// RecurringRow is the slice of a transaction header the reports expand.
type RecurringRow struct {
	TransactionID int64
	Notes         string
	Type          TransactionType
	Frequency     Frequency
	Date          Date
	Amount        Money
}

type Dashboard struct {
	Summary    Summary         `json:"summary"`
	Monthly    []MonthBucket   `json:"monthly"`
	Categories []CategoryTotal `json:"categories"`
}

// BalanceDrift describes a cached value that disagrees with its lines.
type BalanceDrift struct {
	Entity   string `json:"entity"` // "account" or "transaction"
	ID       int64  `json:"id"`
	Cached   Money  `json:"cached"`
	Computed Money  `json:"computed"`
}
