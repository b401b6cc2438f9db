package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mybudget/internal/cache"
	"mybudget/internal/core"
	"mybudget/internal/log"
	"mybudget/internal/services"
	"mybudget/internal/sheets"
	"mybudget/internal/storage"
)

const (
	defaultSeenEvents = 4096
	defaultSeenTTL    = 24 * time.Hour
)

// LedgerWorker consumes ledger events. For each event it audits the
// touched transaction and account, then refreshes the spreadsheet mirror.
// Events are delivered at least once; ids already handled are skipped.
type LedgerWorker struct {
	store   *storage.Store
	auditor *services.BalanceAuditor
	mirror  sheets.LedgerMirror
	seen    *cache.LRUCache[struct{}]
}

func NewLedgerWorker(store *storage.Store, auditor *services.BalanceAuditor, mirror sheets.LedgerMirror) *LedgerWorker {
	return &LedgerWorker{
		store:   store,
		auditor: auditor,
		mirror:  mirror,
		seen:    cache.NewLRUCache[struct{}](defaultSeenEvents, defaultSeenTTL),
	}
}

// SeenEvents exposes the dedup cache so a cache.Manager can sweep it.
func (w *LedgerWorker) SeenEvents() cache.Cleaner {
	return w.seen
}

// HandleLedgerEvent processes one event. A returned error asks the
// consumer to redeliver, so the id is only remembered on success.
func (w *LedgerWorker) HandleLedgerEvent(ctx context.Context, ev core.LedgerEvent) error {
	if _, dup := w.seen.Get(ev.ID); dup {
		slog.DebugContext(ctx, "Skipping duplicate ledger event", "event_id", ev.ID)
		return nil
	}

	fields := log.NewFields().WithEvent(ev.ID, string(ev.Kind))
	fields[log.FieldBudgetID] = ev.BudgetID
	fields[log.FieldTransactionID] = ev.TransactionID
	slog.InfoContext(ctx, "Processing ledger event", fields.ToSlice()...)

	if w.auditor != nil {
		if err := w.audit(ctx, ev); err != nil {
			return fmt.Errorf("audit event %s: %w", ev.ID, err)
		}
	}

	if w.mirror != nil {
		if err := w.mirrorTransaction(ctx, ev.BudgetID, ev.TransactionID, ev.Kind == core.EventTransactionDeleted); err != nil {
			return fmt.Errorf("mirror event %s: %w", ev.ID, err)
		}
	}

	w.seen.Set(ev.ID, struct{}{})
	return nil
}

func (w *LedgerWorker) audit(ctx context.Context, ev core.LedgerEvent) error {
	scope := services.AuditScope{AccountID: ev.AccountID}
	if ev.Kind != core.EventTransactionDeleted {
		id := ev.TransactionID
		scope.TransactionID = &id
	}
	if scope.AccountID == nil && scope.TransactionID == nil {
		return nil
	}

	report, err := w.auditor.Audit(ctx, scope)
	if err != nil {
		return err
	}
	if !report.Clean() {
		slog.WarnContext(ctx, "Balance drift after ledger event",
			"event_id", ev.ID,
			"accounts", len(report.Accounts),
			"transactions", len(report.Transactions),
			"repaired", report.Repaired)
	}
	return nil
}

func (w *LedgerWorker) mirrorTransaction(ctx context.Context, budgetID, transactionID int64, deleted bool) error {
	if !deleted {
		tx, err := w.store.GetTransaction(ctx, budgetID, transactionID)
		switch {
		case err == nil:
			ref, err := w.mirror.Upsert(ctx, sheets.RowFromTransaction(tx))
			if err != nil {
				return fmt.Errorf("upsert row: %w", err)
			}
			slog.InfoContext(ctx, "Transaction mirrored",
				"transaction_id", transactionID,
				"row_ref", ref,
				"amount_cents", tx.Amount.Cents)
			return nil
		case errors.Is(err, core.ErrNotFound):
			// deleted after the event was recorded
		default:
			return err
		}
	}

	if err := w.mirror.Remove(ctx, budgetID, transactionID); err != nil {
		return fmt.Errorf("remove row: %w", err)
	}
	slog.InfoContext(ctx, "Transaction removed from mirror", "transaction_id", transactionID)
	return nil
}

// StartupResync mirrors every transaction of every live budget. It
// recovers from events lost while the worker was down.
func (w *LedgerWorker) StartupResync(ctx context.Context) error {
	if w.mirror == nil {
		return nil
	}
	budgetIDs, err := w.store.LiveBudgetIDs(ctx)
	if err != nil {
		return fmt.Errorf("list budgets for resync: %w", err)
	}

	synced, failed := 0, 0
	for _, budgetID := range budgetIDs {
		txs, err := w.store.ListTransactions(ctx, storage.TransactionFilter{BudgetID: budgetID})
		if err != nil {
			return fmt.Errorf("list transactions of budget %d: %w", budgetID, err)
		}
		for _, tx := range txs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.mirrorTransaction(ctx, budgetID, tx.ID, false); err != nil {
				slog.ErrorContext(ctx, "Failed to mirror transaction during resync",
					"budget_id", budgetID, "transaction_id", tx.ID, "error", err)
				failed++
				continue
			}
			synced++
		}
	}

	slog.InfoContext(ctx, "Startup resync completed",
		"budgets", len(budgetIDs),
		"synced", synced,
		"errors", failed)
	return nil
}

// PublishLedgerEvent hands an event straight to the worker. Without a
// broker the outbox relay publishes here instead of to AMQP.
func (w *LedgerWorker) PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error {
	return w.HandleLedgerEvent(ctx, ev)
}
