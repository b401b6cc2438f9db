package storage

import (
	"context"
	"fmt"

	"mybudget/internal/core"
)

// AccountDrift returns accounts whose cached balance differs from the sum
// of their lines. A nil accountID checks every account.
func (t *Tx) AccountDrift(ctx context.Context, accountID *int64) ([]core.BalanceDrift, error) {
	q := `SELECT account_id, balance, computed FROM (
		SELECT a.account_id, a.balance,
		       CAST(COALESCE((SELECT SUM(l.amount)
		                      FROM transaction_lines l
		                      JOIN transactions t ON t.transaction_id = l.transaction_id
		                      WHERE t.account_id = a.account_id), 0) AS BIGINT) AS computed
		FROM accounts a`
	var args []any
	if accountID != nil {
		q += ` WHERE a.account_id = ?`
		args = append(args, *accountID)
	}
	q += `) x WHERE balance <> computed ORDER BY account_id`
	return t.drift(ctx, "account", q, args...)
}

// TransactionDrift returns headers whose cached amount differs from the sum
// of their lines. A nil transactionID checks every header.
func (t *Tx) TransactionDrift(ctx context.Context, transactionID *int64) ([]core.BalanceDrift, error) {
	q := `SELECT transaction_id, amount, computed FROM (
		SELECT t.transaction_id, t.amount,
		       CAST(COALESCE((SELECT SUM(l.amount)
		                      FROM transaction_lines l
		                      WHERE l.transaction_id = t.transaction_id), 0) AS BIGINT) AS computed
		FROM transactions t`
	var args []any
	if transactionID != nil {
		q += ` WHERE t.transaction_id = ?`
		args = append(args, *transactionID)
	}
	q += `) x WHERE amount <> computed ORDER BY transaction_id`
	return t.drift(ctx, "transaction", q, args...)
}

func (t *Tx) drift(ctx context.Context, entity, q string, args ...any) ([]core.BalanceDrift, error) {
	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s drift: %w", entity, err)
	}
	defer rows.Close()

	var out []core.BalanceDrift
	for rows.Next() {
		d := core.BalanceDrift{Entity: entity}
		if err := rows.Scan(&d.ID, &d.Cached.Cents, &d.Computed.Cents); err != nil {
			return nil, fmt.Errorf("scan %s drift: %w", entity, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetAccountBalance overwrites a cached balance. Only the auditor calls it.
func (t *Tx) SetAccountBalance(ctx context.Context, accountID int64, balance core.Money) error {
	if _, err := t.exec(ctx,
		`UPDATE accounts SET balance = ? WHERE account_id = ?`, balance.Cents, accountID); err != nil {
		return fmt.Errorf("set account balance: %w", err)
	}
	return nil
}

// SetTransactionAmount overwrites a cached header amount. Only the auditor calls it.
func (t *Tx) SetTransactionAmount(ctx context.Context, transactionID int64, amount core.Money) error {
	if _, err := t.exec(ctx,
		`UPDATE transactions SET amount = ? WHERE transaction_id = ?`, amount.Cents, transactionID); err != nil {
		return fmt.Errorf("set transaction amount: %w", err)
	}
	return nil
}
