package storage

import (
	"context"
	"fmt"
	"strings"

	"mybudget/internal/core"
)

// TransactionFilter narrows ListTransactions. BudgetID is required.
type TransactionFilter struct {
	BudgetID int64
	Type     core.TransactionType
	Month    *core.Month
	Limit    int
}

// ListTransactions returns headers, most recent date first, then most
// recent identifier first.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	const op = "list transactions"

	where := []string{"budget_id = ?", liveBudgetFilter}
	args := []any{f.BudgetID}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Month != nil {
		where = append(where, "substr(date, 1, 7) = ?")
		args = append(args, f.Month.String())
	}

	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY date DESC, transaction_id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, classify(op, fmt.Errorf("scan transaction: %w", err))
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return txs, nil
}

// GetTransaction returns a header with its ordered lines and tag ids, read
// from one read snapshot so a concurrent writer is never observed half-way
// and never waited on.
func (s *Store) GetTransaction(ctx context.Context, budgetID, transactionID int64) (core.Transaction, error) {
	var out core.Transaction
	err := s.WithReadTx(ctx, "get transaction", func(tx *Tx) error {
		var err error
		if out, err = tx.GetTransaction(ctx, budgetID, transactionID); err != nil {
			return err
		}
		if out.Lines, err = tx.ListLines(ctx, transactionID); err != nil {
			return err
		}
		out.TagIDs, err = tx.ListTagIDs(ctx, transactionID)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

// CountTransactions returns the number of headers in a budget, including
// soft-deleted budgets.
func (s *Store) CountTransactions(ctx context.Context, budgetID int64) (int64, error) {
	var n int64
	if err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE budget_id = ?`, budgetID).Scan(&n); err != nil {
		return 0, classify("count transactions", err)
	}
	return n, nil
}
