package services

import (
	"context"
	"fmt"

	"mybudget/internal/core"
)

// BalanceTx is the part of an open write scope the maintainer writes through.
type BalanceTx interface {
	AdjustTransactionAmount(ctx context.Context, transactionID int64, delta core.Money) error
	AdjustAccountBalance(ctx context.Context, accountID int64, delta core.Money) error
}

// BalanceMaintainer keeps transaction.amount and account.balance equal to
// the sum of the lines beneath them. Every line mutation must be followed
// by the matching call, inside the same write scope, before commit.
type BalanceMaintainer struct{}

// LineInserted adds a new line's amount to its header and account.
func (m BalanceMaintainer) LineInserted(ctx context.Context, tx BalanceTx, header core.Transaction, amount core.Money) error {
	return m.apply(ctx, tx, header, amount)
}

// LineUpdated applies the difference between the old and new amount.
func (m BalanceMaintainer) LineUpdated(ctx context.Context, tx BalanceTx, header core.Transaction, oldAmount, newAmount core.Money) error {
	return m.apply(ctx, tx, header, newAmount.Add(oldAmount.Neg()))
}

// LineDeleted removes a deleted line's amount from its header and account.
func (m BalanceMaintainer) LineDeleted(ctx context.Context, tx BalanceTx, header core.Transaction, amount core.Money) error {
	return m.apply(ctx, tx, header, amount.Neg())
}

func (BalanceMaintainer) apply(ctx context.Context, tx BalanceTx, header core.Transaction, delta core.Money) error {
	if delta.IsZero() {
		return nil
	}
	if err := tx.AdjustTransactionAmount(ctx, header.ID, delta); err != nil {
		return fmt.Errorf("maintain transaction %d amount: %w", header.ID, err)
	}
	if header.AccountID == nil {
		return nil
	}
	if err := tx.AdjustAccountBalance(ctx, *header.AccountID, delta); err != nil {
		return fmt.Errorf("maintain account %d balance: %w", *header.AccountID, err)
	}
	return nil
}
