package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"mybudget/internal/core"
)

const budgetColumns = `budget_id, user_id, name, created_at, deleted_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b       core.Budget
		created dbTime
		deleted dbTime
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &created, &deleted); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = created.Time
	if deleted.Valid {
		t := deleted.Time
		b.DeletedAt = &t
	}
	return b, nil
}

func (s *Store) CreateBudget(ctx context.Context, userID int64, name string) (core.Budget, error) {
	const op = "create budget"
	row := s.queryRow(ctx,
		`INSERT INTO budgets (user_id, name) VALUES (?, ?) RETURNING `+budgetColumns,
		userID, name)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, classify(op, err)
	}
	slog.InfoContext(ctx, "Budget created", "budget_id", b.ID, "user_id", userID)
	return b, nil
}

// GetBudget returns a live budget. Soft-deleted budgets are not found.
func (s *Store) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	const op = "get budget"
	b, err := scanBudget(s.queryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE budget_id = ? AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFound(op, "budget %d not found", id)
	}
	if err != nil {
		return core.Budget{}, classify(op, err)
	}
	return b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	const op = "list budgets"
	rows, err := s.query(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE user_id = ? AND deleted_at IS NULL
		 ORDER BY budget_id`, userID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, classify(op, fmt.Errorf("scan budget: %w", err))
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return budgets, nil
}

// SoftDeleteBudget hides the budget from every read and write. Rows stay
// in place until PurgeBudget.
func (s *Store) SoftDeleteBudget(ctx context.Context, id int64) error {
	const op = "delete budget"
	res, err := s.exec(ctx,
		`UPDATE budgets SET deleted_at = CURRENT_TIMESTAMP WHERE budget_id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return classify(op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return core.NotFound(op, "budget %d not found", id)
	}
	slog.InfoContext(ctx, "Budget soft-deleted", "budget_id", id)
	return nil
}

// PurgeBudget removes a budget and cascades to everything it owns.
func (s *Store) PurgeBudget(ctx context.Context, id int64) error {
	const op = "purge budget"
	res, err := s.exec(ctx, `DELETE FROM budgets WHERE budget_id = ?`, id)
	if err != nil {
		return classify(op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return core.NotFound(op, "budget %d not found", id)
	}
	slog.InfoContext(ctx, "Budget purged", "budget_id", id)
	return nil
}

// BudgetLive reports whether the budget exists and is not soft-deleted.
func (t *Tx) BudgetLive(ctx context.Context, budgetID int64) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM budgets WHERE budget_id = ? AND deleted_at IS NULL`, budgetID)
}

func (t *Tx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := t.queryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LiveBudgetIDs returns every budget that is not soft-deleted, across users.
func (s *Store) LiveBudgetIDs(ctx context.Context) ([]int64, error) {
	const op = "list live budgets"
	rows, err := s.query(ctx, `SELECT budget_id FROM budgets WHERE deleted_at IS NULL ORDER BY budget_id`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return ids, nil
}
