package sheets

import (
	"context"

	"mybudget/internal/core"
)

// Row is one mirrored transaction header. The mirror is a read-only copy
// for spreadsheet users; the ledger store stays authoritative.
type Row struct {
	BudgetID      int64
	TransactionID int64
	Date          core.Date
	Type          core.TransactionType
	Frequency     core.Frequency
	Amount        core.Money
	Lines         int
	Notes         string
}

// RowFromTransaction builds the mirror row of a stored transaction.
func RowFromTransaction(tx core.Transaction) Row {
	return Row{
		BudgetID:      tx.BudgetID,
		TransactionID: tx.ID,
		Date:          tx.Date,
		Type:          tx.Type,
		Frequency:     tx.Frequency.OrDefault(),
		Amount:        tx.Amount,
		Lines:         len(tx.Lines),
		Notes:         tx.Notes,
	}
}

// Ports for outbound adapters.
type (
	// LedgerMirror keeps one row per transaction.
	LedgerMirror interface {
		// Upsert writes the row, replacing an existing row of the same
		// transaction.
		Upsert(ctx context.Context, row Row) (rowRef string, err error)
		// Remove drops the transaction's row. Removing a missing row is not
		// an error.
		Remove(ctx context.Context, budgetID, transactionID int64) error
	}

	MirrorReader interface {
		List(ctx context.Context, budgetID int64) ([]Row, error)
	}
)
