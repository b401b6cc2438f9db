package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"mybudget/internal/core"
	"mybudget/internal/storage"
)

// TransactionWriter is the only way ledger lines are created, changed or
// removed. Each operation runs in one write scope: header, lines, tag links,
// balance maintenance and the outbox event commit together or not at all.
type TransactionWriter struct {
	store      *storage.Store
	maintainer BalanceMaintainer
	events     bool
	now        func() time.Time
}

type WriterOption func(*TransactionWriter)

// WithOutboxEvents records a ledger event for every committed change.
func WithOutboxEvents() WriterOption {
	return func(w *TransactionWriter) { w.events = true }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) WriterOption {
	return func(w *TransactionWriter) { w.now = now }
}

func NewTransactionWriter(store *storage.Store, opts ...WriterOption) *TransactionWriter {
	w := &TransactionWriter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Create persists a transaction with its lines and tags and returns the
// stored header including lines in line order.
func (w *TransactionWriter) Create(ctx context.Context, req core.TransactionRequest) (core.Transaction, error) {
	const op = "create transaction"
	if err := req.Validate(); err != nil {
		return core.Transaction{}, err
	}
	date, _ := core.ParseDate(req.Date)
	tagIDs := req.UniqueTagIDs()

	var created core.Transaction
	err := w.store.WithTx(ctx, op, func(tx *storage.Tx) error {
		if err := checkHeaderReferences(ctx, tx, op, req.BudgetID, req.AccountID); err != nil {
			return err
		}
		for _, id := range tagIDs {
			ok, err := tx.TagInBudget(ctx, req.BudgetID, id)
			if err != nil {
				return err
			}
			if !ok {
				return core.BadReference(op, "tag %d does not exist in budget %d", id, req.BudgetID)
			}
		}

		header, err := tx.InsertTransaction(ctx, req, date)
		if err != nil {
			return err
		}

		lines := make([]core.Line, 0, len(req.Lines))
		for i, l := range req.Lines {
			if err := checkCategory(ctx, tx, op, req.BudgetID, l.CategoryID); err != nil {
				return err
			}
			order := i + 1
			if l.LineOrder != nil {
				order = *l.LineOrder
			}
			line, err := tx.InsertLine(ctx, header.ID, l, order)
			if err != nil {
				return err
			}
			if err := w.maintainer.LineInserted(ctx, tx, header, line.Amount); err != nil {
				return err
			}
			header.Amount = header.Amount.Add(line.Amount)
			lines = append(lines, line)
		}
		sortLines(lines)

		for _, id := range tagIDs {
			if err := tx.LinkTag(ctx, header.ID, id); err != nil {
				return err
			}
		}

		header.Lines = lines
		header.TagIDs = tagIDs
		if err := w.recordEvent(ctx, tx, core.EventTransactionCreated, header); err != nil {
			return err
		}
		created = header
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Transaction create rejected",
			"budget_id", req.BudgetID,
			"lines", len(req.Lines),
			"error", err)
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"budget_id", created.BudgetID,
		"transaction_id", created.ID,
		"amount_cents", created.Amount.Cents,
		"lines", len(created.Lines),
		"tags", len(created.TagIDs))
	return created, nil
}

// Delete removes a transaction. Lines go through the balance maintainer
// one by one so the account balance unwinds, then the header goes and
// its tag links cascade.
func (w *TransactionWriter) Delete(ctx context.Context, budgetID, transactionID int64) error {
	const op = "delete transaction"
	if err := validateIDs(op, budgetID, transactionID); err != nil {
		return err
	}

	err := w.store.WithTx(ctx, op, func(tx *storage.Tx) error {
		header, err := tx.GetTransaction(ctx, budgetID, transactionID)
		if err != nil {
			return err
		}
		lines, err := tx.ListLines(ctx, transactionID)
		if err != nil {
			return err
		}
		removed := header
		for _, l := range lines {
			if err := tx.DeleteLine(ctx, l.ID); err != nil {
				return err
			}
			if err := w.maintainer.LineDeleted(ctx, tx, header, l.Amount); err != nil {
				return err
			}
		}
		if err := tx.DeleteTransactionHeader(ctx, transactionID); err != nil {
			return err
		}
		return w.recordEvent(ctx, tx, core.EventTransactionDeleted, removed)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "budget_id", budgetID, "transaction_id", transactionID)
	return nil
}

// AddLine appends a line to an existing transaction. Without an explicit
// line_order the line goes after the current last line.
func (w *TransactionWriter) AddLine(ctx context.Context, budgetID, transactionID int64, req core.LineRequest) (core.Line, error) {
	const op = "add line"
	if err := validateIDs(op, budgetID, transactionID); err != nil {
		return core.Line{}, err
	}
	if err := req.Validate(); err != nil {
		return core.Line{}, err
	}

	var line core.Line
	err := w.store.WithTx(ctx, op, func(tx *storage.Tx) error {
		header, err := tx.GetTransaction(ctx, budgetID, transactionID)
		if err != nil {
			return err
		}
		if err := checkCategory(ctx, tx, op, budgetID, req.CategoryID); err != nil {
			return err
		}
		order := 0
		if req.LineOrder != nil {
			order = *req.LineOrder
		} else if order, err = tx.NextLineOrder(ctx, transactionID); err != nil {
			return err
		}
		if line, err = tx.InsertLine(ctx, transactionID, req, order); err != nil {
			return err
		}
		if err := w.maintainer.LineInserted(ctx, tx, header, line.Amount); err != nil {
			return err
		}
		header.Amount = header.Amount.Add(line.Amount)
		return w.recordEvent(ctx, tx, core.EventLinesChanged, header)
	})
	if err != nil {
		return core.Line{}, err
	}
	return line, nil
}

// UpdateLine changes a line's amount, category or note.
func (w *TransactionWriter) UpdateLine(ctx context.Context, budgetID, transactionID, lineID int64, upd core.LineUpdate) (core.Line, error) {
	const op = "update line"
	if err := validateIDs(op, budgetID, transactionID, lineID); err != nil {
		return core.Line{}, err
	}
	if err := upd.Validate(); err != nil {
		return core.Line{}, err
	}

	var updated core.Line
	err := w.store.WithTx(ctx, op, func(tx *storage.Tx) error {
		header, err := tx.GetTransaction(ctx, budgetID, transactionID)
		if err != nil {
			return err
		}
		current, err := tx.GetLine(ctx, transactionID, lineID)
		if err != nil {
			return err
		}

		next := current
		if upd.Amount != nil {
			next.Amount = *upd.Amount
		}
		if upd.CategoryID != nil {
			if err := checkCategory(ctx, tx, op, budgetID, upd.CategoryID); err != nil {
				return err
			}
			next.CategoryID = upd.CategoryID
		}
		if upd.ClearCategory {
			next.CategoryID = nil
		}
		if upd.Note != nil {
			next.Note = *upd.Note
		}

		if err := tx.UpdateLine(ctx, next); err != nil {
			return err
		}
		if err := w.maintainer.LineUpdated(ctx, tx, header, current.Amount, next.Amount); err != nil {
			return err
		}
		updated = next
		header.Amount = header.Amount.Add(next.Amount).Add(current.Amount.Neg())
		return w.recordEvent(ctx, tx, core.EventLinesChanged, header)
	})
	if err != nil {
		return core.Line{}, err
	}
	return updated, nil
}

// DeleteLine removes one line. The last line of a transaction cannot be
// removed; delete the transaction instead.
func (w *TransactionWriter) DeleteLine(ctx context.Context, budgetID, transactionID, lineID int64) error {
	const op = "delete line"
	if err := validateIDs(op, budgetID, transactionID, lineID); err != nil {
		return err
	}

	return w.store.WithTx(ctx, op, func(tx *storage.Tx) error {
		header, err := tx.GetTransaction(ctx, budgetID, transactionID)
		if err != nil {
			return err
		}
		line, err := tx.GetLine(ctx, transactionID, lineID)
		if err != nil {
			return err
		}
		lines, err := tx.ListLines(ctx, transactionID)
		if err != nil {
			return err
		}
		if len(lines) <= 1 {
			return core.Invalid(op, "a transaction must keep at least one line")
		}
		if err := tx.DeleteLine(ctx, lineID); err != nil {
			return err
		}
		if err := w.maintainer.LineDeleted(ctx, tx, header, line.Amount); err != nil {
			return err
		}
		header.Amount = header.Amount.Add(line.Amount.Neg())
		return w.recordEvent(ctx, tx, core.EventLinesChanged, header)
	})
}

// ReassignCategoryLines moves every line from one category to another of
// the same budget, typically before deleting the source category.
func (w *TransactionWriter) ReassignCategoryLines(ctx context.Context, budgetID, fromID, toID int64) (int64, error) {
	const op = "reassign category"
	if err := validateIDs(op, budgetID, fromID, toID); err != nil {
		return 0, err
	}
	if fromID == toID {
		return 0, core.Invalid(op, "source and target category are the same")
	}

	var moved int64
	err := w.store.WithTx(ctx, op, func(tx *storage.Tx) error {
		ok, err := tx.CategoryInBudget(ctx, budgetID, fromID)
		if err != nil {
			return err
		}
		if !ok {
			return core.NotFound(op, "category %d not found in budget %d", fromID, budgetID)
		}
		if err := checkCategory(ctx, tx, op, budgetID, &toID); err != nil {
			return err
		}
		moved, err = tx.ReassignCategoryLines(ctx, fromID, toID)
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Category lines reassigned",
		"budget_id", budgetID, "from_category", fromID, "to_category", toID, "lines", moved)
	return moved, nil
}

func (w *TransactionWriter) recordEvent(ctx context.Context, tx *storage.Tx, kind core.EventKind, header core.Transaction) error {
	if !w.events {
		return nil
	}
	return tx.RecordEvent(ctx, core.LedgerEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		BudgetID:      header.BudgetID,
		TransactionID: header.ID,
		AccountID:     header.AccountID,
		Amount:        header.Amount,
		OccurredAt:    w.now().UTC(),
	})
}

func checkHeaderReferences(ctx context.Context, tx *storage.Tx, op string, budgetID int64, accountID *int64) error {
	live, err := tx.BudgetLive(ctx, budgetID)
	if err != nil {
		return err
	}
	if !live {
		return core.BadReference(op, "budget %d does not exist", budgetID)
	}
	if accountID == nil {
		return nil
	}
	ok, err := tx.AccountInBudget(ctx, budgetID, *accountID)
	if err != nil {
		return err
	}
	if !ok {
		return core.BadReference(op, "account %d does not exist in budget %d", *accountID, budgetID)
	}
	return nil
}

func checkCategory(ctx context.Context, tx *storage.Tx, op string, budgetID int64, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	ok, err := tx.CategoryInBudget(ctx, budgetID, *categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return core.BadReference(op, "category %d does not exist in budget %d", *categoryID, budgetID)
	}
	return nil
}

func validateIDs(op string, ids ...int64) error {
	for _, id := range ids {
		if id <= 0 {
			return core.Invalid(op, "identifiers must be positive integers")
		}
	}
	return nil
}

func sortLines(lines []core.Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].LineOrder != lines[j].LineOrder {
			return lines[i].LineOrder < lines[j].LineOrder
		}
		return lines[i].ID < lines[j].ID
	})
}
