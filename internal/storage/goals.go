package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"mybudget/internal/core"
)

const goalColumns = `goal_id, budget_id, name, target_amount, current_amount`

func scanGoal(row interface{ Scan(...any) error }) (core.SavingGoal, error) {
	var g core.SavingGoal
	err := row.Scan(&g.ID, &g.BudgetID, &g.Name, &g.Target.Cents, &g.Current.Cents)
	return g, err
}

func (s *Store) CreateGoal(ctx context.Context, budgetID int64, req core.GoalRequest) (core.SavingGoal, error) {
	const op = "create goal"
	var goal core.SavingGoal
	err := s.WithTx(ctx, op, func(tx *Tx) error {
		live, err := tx.BudgetLive(ctx, budgetID)
		if err != nil {
			return err
		}
		if !live {
			return core.BadReference(op, "budget %d does not exist", budgetID)
		}
		goal, err = scanGoal(tx.queryRow(ctx,
			`INSERT INTO saving_goals (budget_id, name, target_amount, current_amount)
			 VALUES (?, ?, ?, ?) RETURNING `+goalColumns,
			budgetID, req.Name, req.Target.Cents, req.Current.Cents))
		return err
	})
	if err != nil {
		return core.SavingGoal{}, err
	}
	slog.InfoContext(ctx, "Saving goal created", "budget_id", budgetID, "goal_id", goal.ID)
	return goal, nil
}

func (s *Store) ListGoals(ctx context.Context, budgetID int64) ([]core.SavingGoal, error) {
	const op = "list goals"
	rows, err := s.query(ctx,
		`SELECT `+goalColumns+` FROM saving_goals
		 WHERE budget_id = ? AND `+liveBudgetFilter+`
		 ORDER BY name, goal_id`, budgetID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	goals := []core.SavingGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, classify(op, fmt.Errorf("scan goal: %w", err))
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return goals, nil
}

// UpdateGoal replaces name and amounts of a goal.
func (s *Store) UpdateGoal(ctx context.Context, budgetID, goalID int64, req core.GoalRequest) (core.SavingGoal, error) {
	const op = "update goal"
	goal, err := scanGoal(s.queryRow(ctx,
		`UPDATE saving_goals SET name = ?, target_amount = ?, current_amount = ?
		 WHERE goal_id = ? AND budget_id = ? AND `+liveBudgetFilter+`
		 RETURNING `+goalColumns,
		req.Name, req.Target.Cents, req.Current.Cents, goalID, budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingGoal{}, core.NotFound(op, "goal %d not found in budget %d", goalID, budgetID)
	}
	if err != nil {
		return core.SavingGoal{}, classify(op, err)
	}
	return goal, nil
}

// ContributeGoal adds delta to the saved amount. Withdrawals (negative
// delta) may not take the amount below zero.
func (s *Store) ContributeGoal(ctx context.Context, budgetID, goalID int64, delta core.Money) (core.SavingGoal, error) {
	const op = "contribute goal"
	var goal core.SavingGoal
	err := s.WithTx(ctx, op, func(tx *Tx) error {
		current, err := scanGoal(tx.queryRow(ctx,
			`SELECT `+goalColumns+` FROM saving_goals
			 WHERE goal_id = ? AND budget_id = ? AND `+liveBudgetFilter,
			goalID, budgetID))
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFound(op, "goal %d not found in budget %d", goalID, budgetID)
		}
		if err != nil {
			return err
		}
		if current.Current.Add(delta).Cents < 0 {
			return core.Invalid(op, "withdrawal exceeds the saved amount of %d", current.Current.Cents)
		}
		goal, err = scanGoal(tx.queryRow(ctx,
			`UPDATE saving_goals SET current_amount = current_amount + ?
			 WHERE goal_id = ? RETURNING `+goalColumns,
			delta.Cents, goalID))
		return err
	})
	if err != nil {
		return core.SavingGoal{}, err
	}
	slog.InfoContext(ctx, "Saving goal updated", "budget_id", budgetID, "goal_id", goalID, "delta", delta.Cents)
	return goal, nil
}

func (s *Store) DeleteGoal(ctx context.Context, budgetID, goalID int64) error {
	const op = "delete goal"
	res, err := s.exec(ctx,
		`DELETE FROM saving_goals WHERE goal_id = ? AND budget_id = ? AND `+liveBudgetFilter,
		goalID, budgetID)
	if err != nil {
		return classify(op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return core.NotFound(op, "goal %d not found in budget %d", goalID, budgetID)
	}
	slog.InfoContext(ctx, "Saving goal deleted", "budget_id", budgetID, "goal_id", goalID)
	return nil
}
