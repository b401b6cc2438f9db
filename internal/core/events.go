package core

import "time"

const (
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventLinesChanged       EventKind = "transaction.lines_changed"
)

type EventKind string

// LedgerEvent is recorded in the outbox inside the same write scope as the
// change it describes, then relayed to the message broker.
type LedgerEvent struct {
	ID            string    `json:"event_id"`
	Kind          EventKind `json:"kind"`
	BudgetID      int64     `json:"budget_id"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     *int64    `json:"account_id,omitempty"`
	Amount        Money     `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
	Attempts      int       `json:"-"`
}
