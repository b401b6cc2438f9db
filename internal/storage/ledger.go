package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mybudget/internal/core"
)

// Statements used inside the atomic write scope. The balance maintainer
// calls AdjustTransactionAmount and AdjustAccountBalance after every line
// mutation; nothing in the schema updates cached amounts on its own.

const transactionColumns = `transaction_id, budget_id, account_id, date, notes, type, frequency, amount`

const lineColumns = `line_id, transaction_id, category_id, amount, line_order, note`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx      core.Transaction
		account sql.NullInt64
		date    string
	)
	if err := row.Scan(&tx.ID, &tx.BudgetID, &account, &date, &tx.Notes, &tx.Type, &tx.Frequency, &tx.Amount.Cents); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", tx.ID, err)
	}
	tx.Date = d
	tx.AccountID = int64Ptr(account)
	return tx, nil
}

func scanLine(row interface{ Scan(...any) error }) (core.Line, error) {
	var (
		l        core.Line
		category sql.NullInt64
		note     sql.NullString
	)
	if err := row.Scan(&l.ID, &l.TransactionID, &category, &l.Amount.Cents, &l.LineOrder, &note); err != nil {
		return core.Line{}, err
	}
	l.CategoryID = int64Ptr(category)
	l.Note = note.String
	return l, nil
}

// InsertTransaction writes a header with a zero amount.
func (t *Tx) InsertTransaction(ctx context.Context, req core.TransactionRequest, date core.Date) (core.Transaction, error) {
	row := t.queryRow(ctx,
		`INSERT INTO transactions (budget_id, account_id, date, notes, type, frequency, amount)
		 VALUES (?, ?, ?, ?, ?, ?, 0)
		 RETURNING `+transactionColumns,
		req.BudgetID, nullInt64(req.AccountID), date.String(), req.Notes, req.Type, req.Frequency.OrDefault())
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

// InsertLine writes one line. It does not touch cached amounts.
func (t *Tx) InsertLine(ctx context.Context, transactionID int64, l core.LineRequest, order int) (core.Line, error) {
	row := t.queryRow(ctx,
		`INSERT INTO transaction_lines (transaction_id, category_id, amount, line_order, note)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+lineColumns,
		transactionID, nullInt64(l.CategoryID), l.Amount.Cents, order, nullString(l.Note))
	line, err := scanLine(row)
	if err != nil {
		return core.Line{}, fmt.Errorf("insert line %d: %w", order, err)
	}
	return line, nil
}

// AdjustTransactionAmount adds delta to the header's cached amount.
func (t *Tx) AdjustTransactionAmount(ctx context.Context, transactionID int64, delta core.Money) error {
	res, err := t.exec(ctx,
		`UPDATE transactions SET amount = amount + ? WHERE transaction_id = ?`, delta.Cents, transactionID)
	if err != nil {
		return fmt.Errorf("adjust transaction amount: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return core.BadReference("adjust transaction amount", "transaction %d no longer exists", transactionID)
	}
	return nil
}

// GetTransaction loads a header scoped to a live budget.
func (t *Tx) GetTransaction(ctx context.Context, budgetID, transactionID int64) (core.Transaction, error) {
	const op = "get transaction"
	tx, err := scanTransaction(t.queryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE transaction_id = ? AND budget_id = ? AND `+liveBudgetFilter,
		transactionID, budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound(op, "transaction %d not found in budget %d", transactionID, budgetID)
	}
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// ListLines returns the lines of a transaction in line order.
func (t *Tx) ListLines(ctx context.Context, transactionID int64) ([]core.Line, error) {
	rows, err := t.query(ctx,
		`SELECT `+lineColumns+` FROM transaction_lines
		 WHERE transaction_id = ?
		 ORDER BY line_order, line_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	lines := []core.Line{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *Tx) GetLine(ctx context.Context, transactionID, lineID int64) (core.Line, error) {
	l, err := scanLine(t.queryRow(ctx,
		`SELECT `+lineColumns+` FROM transaction_lines WHERE line_id = ? AND transaction_id = ?`,
		lineID, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Line{}, core.NotFound("get line", "line %d not found in transaction %d", lineID, transactionID)
	}
	return l, err
}

// UpdateLine overwrites category, amount and note of a line.
func (t *Tx) UpdateLine(ctx context.Context, l core.Line) error {
	if _, err := t.exec(ctx,
		`UPDATE transaction_lines SET category_id = ?, amount = ?, note = ? WHERE line_id = ?`,
		nullInt64(l.CategoryID), l.Amount.Cents, nullString(l.Note), l.ID); err != nil {
		return fmt.Errorf("update line: %w", err)
	}
	return nil
}

func (t *Tx) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := t.exec(ctx, `DELETE FROM transaction_lines WHERE line_id = ?`, lineID); err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	return nil
}

// NextLineOrder returns the position after the last line of a transaction.
func (t *Tx) NextLineOrder(ctx context.Context, transactionID int64) (int, error) {
	var next int
	err := t.queryRow(ctx,
		`SELECT COALESCE(MAX(line_order), 0) + 1 FROM transaction_lines WHERE transaction_id = ?`,
		transactionID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next line order: %w", err)
	}
	return next, nil
}

// DeleteTransactionHeader removes a header. Tag links cascade; lines must
// already have been removed through the balance maintainer.
func (t *Tx) DeleteTransactionHeader(ctx context.Context, transactionID int64) error {
	res, err := t.exec(ctx, `DELETE FROM transactions WHERE transaction_id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return core.NotFound("delete transaction", "transaction %d not found", transactionID)
	}
	return nil
}

// ListTagIDs returns the tags linked to a transaction.
func (t *Tx) ListTagIDs(ctx context.Context, transactionID int64) ([]int64, error) {
	rows, err := t.query(ctx,
		`SELECT tag_id FROM transaction_tags WHERE transaction_id = ? ORDER BY tag_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list tag links: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tag link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordEvent appends a ledger event to the outbox within the write scope.
func (t *Tx) RecordEvent(ctx context.Context, ev core.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	if _, err := t.exec(ctx,
		`INSERT INTO ledger_events (event_id, kind, budget_id, transaction_id, account_id, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.BudgetID, ev.TransactionID, nullInt64(ev.AccountID), string(payload)); err != nil {
		return fmt.Errorf("record ledger event: %w", err)
	}
	return nil
}
