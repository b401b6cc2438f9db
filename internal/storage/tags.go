package storage

import (
	"context"
	"errors"
	"fmt"

	"mybudget/internal/core"
)

func (s *Store) CreateTag(ctx context.Context, budgetID int64, name string) (core.Tag, error) {
	const op = "create tag"
	var tag core.Tag
	err := s.WithTx(ctx, op, func(tx *Tx) error {
		live, err := tx.BudgetLive(ctx, budgetID)
		if err != nil {
			return err
		}
		if !live {
			return core.BadReference(op, "budget %d does not exist", budgetID)
		}
		return tx.queryRow(ctx,
			`INSERT INTO tags (budget_id, name) VALUES (?, ?) RETURNING tag_id, budget_id, name`,
			budgetID, name).Scan(&tag.ID, &tag.BudgetID, &tag.Name)
	})
	if errors.Is(err, core.ErrConflict) {
		return core.Tag{}, core.Conflict(op, fmt.Sprintf("tag %q already exists in this budget", name))
	}
	if err != nil {
		return core.Tag{}, err
	}
	return tag, nil
}

func (s *Store) ListTags(ctx context.Context, budgetID int64) ([]core.Tag, error) {
	const op = "list tags"
	rows, err := s.query(ctx,
		`SELECT tag_id, budget_id, name FROM tags
		 WHERE budget_id = ? AND `+liveBudgetFilter+`
		 ORDER BY name, tag_id`, budgetID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	tags := []core.Tag{}
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.BudgetID, &t.Name); err != nil {
			return nil, classify(op, fmt.Errorf("scan tag: %w", err))
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return tags, nil
}

// TagInBudget reports whether the tag belongs to the budget.
func (t *Tx) TagInBudget(ctx context.Context, budgetID, tagID int64) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM tags WHERE tag_id = ? AND budget_id = ?`, tagID, budgetID)
}

// LinkTag attaches a tag to a transaction. Linking twice is a no-op.
func (t *Tx) LinkTag(ctx context.Context, transactionID, tagID int64) error {
	if _, err := t.exec(ctx,
		`INSERT INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		transactionID, tagID); err != nil {
		return fmt.Errorf("link tag %d: %w", tagID, err)
	}
	return nil
}
