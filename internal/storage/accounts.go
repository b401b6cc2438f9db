package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"mybudget/internal/core"
)

const accountColumns = `account_id, budget_id, name, type, balance`

const liveBudgetFilter = `budget_id IN (SELECT budget_id FROM budgets WHERE deleted_at IS NULL)`

func scanAccount(row interface{ Scan(...any) error }) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.BudgetID, &a.Name, &a.Type, &a.Balance.Cents)
	return a, err
}

// CreateAccount opens an account with a zero balance. The balance only
// moves through transaction lines.
func (s *Store) CreateAccount(ctx context.Context, budgetID int64, name, accountType string) (core.Account, error) {
	const op = "create account"
	if accountType == "" {
		accountType = "checking"
	}
	var acc core.Account
	err := s.WithTx(ctx, op, func(tx *Tx) error {
		live, err := tx.BudgetLive(ctx, budgetID)
		if err != nil {
			return err
		}
		if !live {
			return core.BadReference(op, "budget %d does not exist", budgetID)
		}
		acc, err = scanAccount(tx.queryRow(ctx,
			`INSERT INTO accounts (budget_id, name, type) VALUES (?, ?, ?) RETURNING `+accountColumns,
			budgetID, name, accountType))
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Account created", "budget_id", budgetID, "account_id", acc.ID)
	return acc, nil
}

func (s *Store) GetAccount(ctx context.Context, budgetID, accountID int64) (core.Account, error) {
	const op = "get account"
	acc, err := scanAccount(s.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE account_id = ? AND budget_id = ? AND `+liveBudgetFilter,
		accountID, budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound(op, "account %d not found in budget %d", accountID, budgetID)
	}
	if err != nil {
		return core.Account{}, classify(op, err)
	}
	return acc, nil
}

func (s *Store) ListAccounts(ctx context.Context, budgetID int64) ([]core.Account, error) {
	const op = "list accounts"
	rows, err := s.query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE budget_id = ? AND `+liveBudgetFilter+`
		 ORDER BY name, account_id`, budgetID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, classify(op, fmt.Errorf("scan account: %w", err))
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return accounts, nil
}

// UpdateAccount renames or retypes an account. The balance is not writable.
func (s *Store) UpdateAccount(ctx context.Context, budgetID, accountID int64, name, accountType string) (core.Account, error) {
	const op = "update account"
	acc, err := scanAccount(s.queryRow(ctx,
		`UPDATE accounts SET name = ?, type = ?
		 WHERE account_id = ? AND budget_id = ? AND `+liveBudgetFilter+`
		 RETURNING `+accountColumns,
		name, accountType, accountID, budgetID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound(op, "account %d not found in budget %d", accountID, budgetID)
	}
	if err != nil {
		return core.Account{}, classify(op, err)
	}
	return acc, nil
}

// DeleteAccount removes an account nothing references. Referenced accounts
// are refused with the number of referencing transactions.
func (s *Store) DeleteAccount(ctx context.Context, budgetID, accountID int64) error {
	const op = "delete account"
	return s.WithTx(ctx, op, func(tx *Tx) error {
		ok, err := tx.AccountInBudget(ctx, budgetID, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return core.NotFound(op, "account %d not found in budget %d", accountID, budgetID)
		}

		var refs int64
		if err := tx.queryRow(ctx,
			`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&refs); err != nil {
			return fmt.Errorf("count account transactions: %w", err)
		}
		if refs > 0 {
			return core.InUse(op, fmt.Sprintf("account is referenced by %d transactions", refs), refs)
		}

		if _, err := tx.exec(ctx, `DELETE FROM accounts WHERE account_id = ?`, accountID); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Account deleted", "budget_id", budgetID, "account_id", accountID)
		return nil
	})
}

// AccountInBudget reports whether the account belongs to a live budget.
func (t *Tx) AccountInBudget(ctx context.Context, budgetID, accountID int64) (bool, error) {
	return t.exists(ctx,
		`SELECT 1 FROM accounts WHERE account_id = ? AND budget_id = ? AND `+liveBudgetFilter,
		accountID, budgetID)
}

// AdjustAccountBalance adds delta to the cached balance. A missing account
// is a referential failure.
func (t *Tx) AdjustAccountBalance(ctx context.Context, accountID int64, delta core.Money) error {
	res, err := t.exec(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE account_id = ?`, delta.Cents, accountID)
	if err != nil {
		return fmt.Errorf("adjust account balance: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return core.BadReference("adjust account balance", "account %d no longer exists", accountID)
	}
	return nil
}
