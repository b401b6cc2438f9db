package storage

import (
	"context"
	"fmt"

	"mybudget/internal/core"
)

// Every report query joins budgets so soft-deleted budgets contribute
// nothing, and filters by budget_id on each budget-owned table it reads.

// RecurringRows returns income and expense headers of a budget, optionally
// limited to those dated within month. Transfers are excluded.
func (s *Store) RecurringRows(ctx context.Context, budgetID int64, month *core.Month) ([]core.RecurringRow, error) {
	const op = "report rows"
	q := `SELECT t.transaction_id, t.notes, t.type, t.frequency, t.date, t.amount
		FROM transactions t
		JOIN budgets b ON b.budget_id = t.budget_id
		WHERE t.budget_id = ? AND b.deleted_at IS NULL
		  AND t.type IN ('income', 'expense')`
	args := []any{budgetID}
	if month != nil {
		q += ` AND substr(t.date, 1, 7) = ?`
		args = append(args, month.String())
	}
	q += ` ORDER BY t.date, t.transaction_id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []core.RecurringRow{}
	for rows.Next() {
		var (
			r    core.RecurringRow
			date string
		)
		if err := rows.Scan(&r.TransactionID, &r.Notes, &r.Type, &r.Frequency, &date, &r.Amount.Cents); err != nil {
			return nil, classify(op, fmt.Errorf("scan report row: %w", err))
		}
		if r.Date, err = core.ParseDate(date); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// CategoryTotals sums line amounts per category, largest total first and
// category id ascending on ties.
func (s *Store) CategoryTotals(ctx context.Context, budgetID int64) ([]core.CategoryTotal, error) {
	const op = "category totals"
	rows, err := s.query(ctx,
		`SELECT c.category_id, c.name, c.type, CAST(COALESCE(SUM(l.amount), 0) AS BIGINT) AS total
		 FROM transaction_lines l
		 JOIN transactions t ON t.transaction_id = l.transaction_id
		 JOIN categories c ON c.category_id = l.category_id
		 JOIN budgets b ON b.budget_id = t.budget_id
		 WHERE t.budget_id = ? AND c.budget_id = ? AND b.deleted_at IS NULL
		 GROUP BY c.category_id, c.name, c.type
		 ORDER BY total DESC, c.category_id ASC`,
		budgetID, budgetID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Type, &ct.Total.Cents); err != nil {
			return nil, classify(op, fmt.Errorf("scan category total: %w", err))
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// TagTotals sums the lines of tagged transactions per tag.
func (s *Store) TagTotals(ctx context.Context, budgetID int64) ([]core.TagTotal, error) {
	const op = "tag totals"
	rows, err := s.query(ctx,
		`SELECT g.tag_id, g.name, CAST(COALESCE(SUM(l.amount), 0) AS BIGINT) AS total
		 FROM tags g
		 JOIN transaction_tags tt ON tt.tag_id = g.tag_id
		 JOIN transactions t ON t.transaction_id = tt.transaction_id
		 JOIN transaction_lines l ON l.transaction_id = t.transaction_id
		 JOIN budgets b ON b.budget_id = t.budget_id
		 WHERE t.budget_id = ? AND g.budget_id = ? AND b.deleted_at IS NULL
		 GROUP BY g.tag_id, g.name
		 ORDER BY total DESC, g.tag_id ASC`,
		budgetID, budgetID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []core.TagTotal{}
	for rows.Next() {
		var tt core.TagTotal
		if err := rows.Scan(&tt.TagID, &tt.Name, &tt.Total.Cents); err != nil {
			return nil, classify(op, fmt.Errorf("scan tag total: %w", err))
		}
		out = append(out, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}
