package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"mybudget/internal/core"
)

const categoryColumns = `category_id, budget_id, name, type`

// similarNameDistance is the maximum edit distance reported as a near match.
const similarNameDistance = 2

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.BudgetID, &c.Name, &c.Type)
	return c, err
}

func (s *Store) CreateCategory(ctx context.Context, budgetID int64, name string, typ core.CategoryType) (core.Category, error) {
	const op = "create category"
	var cat core.Category
	err := s.WithTx(ctx, op, func(tx *Tx) error {
		live, err := tx.BudgetLive(ctx, budgetID)
		if err != nil {
			return err
		}
		if !live {
			return core.BadReference(op, "budget %d does not exist", budgetID)
		}
		cat, err = scanCategory(tx.queryRow(ctx,
			`INSERT INTO categories (budget_id, name, type) VALUES (?, ?, ?) RETURNING `+categoryColumns,
			budgetID, name, typ))
		return err
	})
	if errors.Is(err, core.ErrConflict) {
		return core.Category{}, s.categoryConflict(ctx, op, budgetID, name, 0)
	}
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "budget_id", budgetID, "category_id", cat.ID, "type", typ)
	return cat, nil
}

func (s *Store) GetCategory(ctx context.Context, budgetID, categoryID int64) (core.Category, error) {
	const op = "get category"
	cat, err := scanCategory(s.queryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories
		 WHERE category_id = ? AND budget_id = ? AND `+liveBudgetFilter,
		categoryID, budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFound(op, "category %d not found in budget %d", categoryID, budgetID)
	}
	if err != nil {
		return core.Category{}, classify(op, err)
	}
	return cat, nil
}

func (s *Store) ListCategories(ctx context.Context, budgetID int64) ([]core.Category, error) {
	const op = "list categories"
	rows, err := s.query(ctx,
		`SELECT `+categoryColumns+` FROM categories
		 WHERE budget_id = ? AND `+liveBudgetFilter+`
		 ORDER BY type, name, category_id`, budgetID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, classify(op, fmt.Errorf("scan category: %w", err))
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return cats, nil
}

func (s *Store) UpdateCategory(ctx context.Context, budgetID, categoryID int64, name string, typ core.CategoryType) (core.Category, error) {
	const op = "update category"
	cat, err := scanCategory(s.queryRow(ctx,
		`UPDATE categories SET name = ?, type = ?
		 WHERE category_id = ? AND budget_id = ? AND `+liveBudgetFilter+`
		 RETURNING `+categoryColumns,
		name, typ, categoryID, budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFound(op, "category %d not found in budget %d", categoryID, budgetID)
	}
	if err != nil {
		err = classify(op, err)
		if errors.Is(err, core.ErrConflict) {
			return core.Category{}, s.categoryConflict(ctx, op, budgetID, name, categoryID)
		}
		return core.Category{}, err
	}
	return cat, nil
}

// DeleteCategory removes a category no line references. The usage check
// and the delete run in one write scope so a concurrent line insert cannot
// slip in between.
func (s *Store) DeleteCategory(ctx context.Context, budgetID, categoryID int64) error {
	const op = "delete category"
	return s.WithTx(ctx, op, func(tx *Tx) error {
		ok, err := tx.CategoryInBudget(ctx, budgetID, categoryID)
		if err != nil {
			return err
		}
		if !ok {
			return core.NotFound(op, "category %d not found in budget %d", categoryID, budgetID)
		}

		var lines int64
		if err := tx.queryRow(ctx,
			`SELECT COUNT(*) FROM transaction_lines WHERE category_id = ?`, categoryID).Scan(&lines); err != nil {
			return fmt.Errorf("count category lines: %w", err)
		}
		if lines > 0 {
			return core.InUse(op, fmt.Sprintf("category is used by %d transaction lines", lines), lines)
		}

		if _, err := tx.exec(ctx, `DELETE FROM categories WHERE category_id = ?`, categoryID); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Category deleted", "budget_id", budgetID, "category_id", categoryID)
		return nil
	})
}

// CategoryStats returns the number of lines using a category and their sum.
func (s *Store) CategoryStats(ctx context.Context, budgetID, categoryID int64) (core.CategoryStats, error) {
	const op = "category stats"
	if _, err := s.GetCategory(ctx, budgetID, categoryID); err != nil {
		return core.CategoryStats{}, err
	}
	stats := core.CategoryStats{CategoryID: categoryID}
	err := s.queryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transaction_lines WHERE category_id = ?`,
		categoryID).Scan(&stats.LineCount, &stats.Total.Cents)
	if err != nil {
		return core.CategoryStats{}, classify(op, err)
	}
	return stats, nil
}

// CategoryInBudget reports whether the category belongs to a live budget.
func (t *Tx) CategoryInBudget(ctx context.Context, budgetID, categoryID int64) (bool, error) {
	return t.exists(ctx,
		`SELECT 1 FROM categories WHERE category_id = ? AND budget_id = ? AND `+liveBudgetFilter,
		categoryID, budgetID)
}

// ReassignCategoryLines moves every line of one category to another and
// returns the number of lines moved. Amounts do not change.
func (t *Tx) ReassignCategoryLines(ctx context.Context, fromID, toID int64) (int64, error) {
	res, err := t.exec(ctx,
		`UPDATE transaction_lines SET category_id = ? WHERE category_id = ?`, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("reassign category lines: %w", err)
	}
	return rowsAffected(res)
}

// categoryConflict builds the uniqueness error, listing existing names
// close to the rejected one.
func (s *Store) categoryConflict(ctx context.Context, op string, budgetID int64, name string, excludeID int64) error {
	detail := fmt.Sprintf("category %q already exists in this budget", name)

	rows, err := s.query(ctx,
		`SELECT category_id, name FROM categories WHERE budget_id = ?`, budgetID)
	if err != nil {
		return core.Conflict(op, detail)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			id int64
			n  string
		)
		if err := rows.Scan(&id, &n); err != nil {
			return core.Conflict(op, detail)
		}
		if id != excludeID {
			names = append(names, n)
		}
	}
	return core.Conflict(op, detail, SimilarNames(name, names)...)
}

// SimilarNames returns the candidates within a small edit distance of name,
// compared case-insensitively, closest first.
func SimilarNames(name string, candidates []string) []string {
	target := strings.ToLower(strings.TrimSpace(name))
	type scored struct {
		name string
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(target, strings.ToLower(c))
		if d <= similarNameDistance {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}
