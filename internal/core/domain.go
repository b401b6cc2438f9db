package core

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

const (
	OneTime     Frequency = "one-time"
	Daily       Frequency = "daily"
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
	Yearly      Frequency = "yearly"
)

type (
	TransactionType string
	CategoryType    string

	// Frequency tags a transaction as recurring for reporting purposes.
	// An empty frequency is treated as one-time.
	Frequency string

	Date struct {
		time.Time
	}

	Budget struct {
		ID        int64      `json:"budget_id"`
		UserID    int64      `json:"user_id"`
		Name      string     `json:"name"`
		CreatedAt time.Time  `json:"created_at"`
		DeletedAt *time.Time `json:"deleted_at,omitempty"`
	}

	Account struct {
		ID       int64  `json:"account_id"`
		BudgetID int64  `json:"budget_id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Balance  Money  `json:"balance"`
	}

	Category struct {
		ID       int64        `json:"category_id"`
		BudgetID int64        `json:"budget_id"`
		Name     string       `json:"name"`
		Type     CategoryType `json:"type"`
	}

	Tag struct {
		ID       int64  `json:"tag_id"`
		BudgetID int64  `json:"budget_id"`
		Name     string `json:"name"`
	}

	Transaction struct {
		ID        int64           `json:"transaction_id"`
		BudgetID  int64           `json:"budget_id"`
		AccountID *int64          `json:"account_id"`
		Date      Date            `json:"date"`
		Notes     string          `json:"notes"`
		Type      TransactionType `json:"type"`
		Frequency Frequency       `json:"frequency"`
		Amount    Money           `json:"amount"`
		Lines     []Line          `json:"lines,omitempty"`
		TagIDs    []int64         `json:"tag_ids,omitempty"`
	}

	// SavingGoal tracks progress towards a target amount. Both amounts are
	// minor units; Current never goes negative.
	SavingGoal struct {
		ID       int64  `json:"goal_id"`
		BudgetID int64  `json:"budget_id"`
		Name     string `json:"name"`
		Target   Money  `json:"target_amount"`
		Current  Money  `json:"current_amount"`
	}

	// UpcomingPayment is the next occurrence of a transaction inside a
	// look-ahead window.
	UpcomingPayment struct {
		TransactionID int64           `json:"transaction_id"`
		Notes         string          `json:"notes"`
		Type          TransactionType `json:"type"`
		Frequency     Frequency       `json:"frequency"`
		DueDate       Date            `json:"due_date"`
		Amount        Money           `json:"amount"`
	}

	Line struct {
		ID            int64  `json:"line_id"`
		TransactionID int64  `json:"transaction_id"`
		CategoryID    *int64 `json:"category_id"`
		Amount        Money  `json:"amount"`
		LineOrder     int    `json:"line_order"`
		Note          string `json:"note,omitempty"`
	}
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

func (c CategoryType) IsValid() bool {
	return c == CategoryIncome || c == CategoryExpense
}

func (f Frequency) IsValid() bool {
	switch f {
	case "", OneTime, Daily, Weekly, Fortnightly, Monthly, Yearly:
		return true
	}
	return false
}

// OrDefault maps the empty frequency to OneTime.
func (f Frequency) OrDefault() Frequency {
	if f == "" {
		return OneTime
	}
	return f
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// Month returns the calendar month the date falls in.
func (d Date) Month() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month identifies a calendar month, used as the bucket key of reports.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool { return m.Year == 0 }

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Month) UnmarshalJSON(b []byte) error {
	parsed, err := ParseMonth(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
