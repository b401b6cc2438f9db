package core

import (
	"strings"
)

const maxNotesLength = 500

// TransactionRequest is the input of the atomic transaction writer.
type TransactionRequest struct {
	BudgetID  int64           `json:"budget_id"`
	AccountID *int64          `json:"account_id,omitempty"`
	Date      string          `json:"date"`
	Notes     string          `json:"notes,omitempty"`
	Type      TransactionType `json:"type"`
	Frequency Frequency       `json:"frequency,omitempty"`
	Lines     []LineRequest   `json:"lines"`
	TagIDs    []int64         `json:"tag_ids,omitempty"`
}

type LineRequest struct {
	CategoryID *int64 `json:"category_id,omitempty"`
	Amount     Money  `json:"amount"`
	LineOrder  *int   `json:"line_order,omitempty"`
	Note       string `json:"note,omitempty"`
}

// LineUpdate changes an existing line. Nil fields are left untouched;
// ClearCategory detaches the line from its category.
type LineUpdate struct {
	Amount        *Money  `json:"amount,omitempty"`
	CategoryID    *int64  `json:"category_id,omitempty"`
	ClearCategory bool    `json:"clear_category,omitempty"`
	Note          *string `json:"note,omitempty"`
}

// Validate checks the request shape. It never touches storage.
func (r TransactionRequest) Validate() error {
	const op = "validate transaction"
	if r.BudgetID <= 0 {
		return Invalid(op, "budget_id must be a positive integer")
	}
	if r.AccountID != nil && *r.AccountID <= 0 {
		return Invalid(op, "account_id must be a positive integer")
	}
	if strings.TrimSpace(r.Date) == "" {
		return Invalid(op, "date is required")
	}
	if _, err := ParseDate(r.Date); err != nil {
		return Invalid(op, "%s", err.Error())
	}
	if !r.Type.IsValid() {
		return Invalid(op, "type must be one of income, expense, transfer")
	}
	if !r.Frequency.IsValid() {
		return Invalid(op, "unknown frequency %q", r.Frequency)
	}
	if len(r.Notes) > maxNotesLength {
		return Invalid(op, "notes too long (max %d characters)", maxNotesLength)
	}
	if len(r.Lines) == 0 {
		return Invalid(op, "at least one line is required")
	}
	for i, l := range r.Lines {
		if err := l.validate(); err != nil {
			return Invalid(op, "line %d: %s", i+1, err.Detail)
		}
	}
	for _, id := range r.TagIDs {
		if id <= 0 {
			return Invalid(op, "tag ids must be positive integers")
		}
	}
	return nil
}

// Validate checks a single line on its own.
func (l LineRequest) Validate() error {
	if err := l.validate(); err != nil {
		err.Op = "validate line"
		return err
	}
	return nil
}

func (l LineRequest) validate() *Error {
	if l.CategoryID != nil && *l.CategoryID <= 0 {
		return Invalid("", "category_id must be a positive integer")
	}
	if l.LineOrder != nil && *l.LineOrder <= 0 {
		return Invalid("", "line_order must be a positive integer")
	}
	if len(l.Note) > maxNotesLength {
		return Invalid("", "note too long (max %d characters)", maxNotesLength)
	}
	return nil
}

// Validate checks a line update in isolation.
func (u LineUpdate) Validate() error {
	if u.CategoryID != nil && *u.CategoryID <= 0 {
		return Invalid("validate line", "category_id must be a positive integer")
	}
	if u.CategoryID != nil && u.ClearCategory {
		return Invalid("validate line", "category_id and clear_category are exclusive")
	}
	if u.Note != nil && len(*u.Note) > maxNotesLength {
		return Invalid("validate line", "note too long (max %d characters)", maxNotesLength)
	}
	return nil
}

// UniqueTagIDs returns the distinct tag ids preserving first occurrence.
func (r TransactionRequest) UniqueTagIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.TagIDs))
	out := make([]int64, 0, len(r.TagIDs))
	for _, id := range r.TagIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateName checks names of accounts, categories, tags and budgets.
func ValidateName(op, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid(op, "name is required")
	}
	if len(name) > 100 {
		return Invalid(op, "name too long (max 100 characters)")
	}
	return nil
}

func ValidateID(op, field string, id int64) error {
	if id <= 0 {
		return Invalid(op, "%s must be a positive integer", field)
	}
	return nil
}

// GoalRequest creates or replaces a saving goal.
type GoalRequest struct {
	Name    string `json:"name"`
	Target  Money  `json:"target_amount"`
	Current Money  `json:"current_amount"`
}

func (r GoalRequest) Validate(op string) error {
	if err := ValidateName(op, r.Name); err != nil {
		return err
	}
	if r.Target.Cents <= 0 {
		return Invalid(op, "target_amount must be positive")
	}
	if r.Current.Cents < 0 {
		return Invalid(op, "current_amount cannot be negative")
	}
	return nil
}
