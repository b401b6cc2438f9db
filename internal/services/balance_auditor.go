package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mybudget/internal/core"
	"mybudget/internal/storage"
)

// AuditScope narrows an audit. The zero value audits everything.
type AuditScope struct {
	AccountID     *int64
	TransactionID *int64
}

// AuditReport lists cached values found out of line with their lines.
type AuditReport struct {
	Accounts     []core.BalanceDrift `json:"accounts"`
	Transactions []core.BalanceDrift `json:"transactions"`
	Repaired     bool                `json:"repaired"`
}

func (r AuditReport) Clean() bool {
	return len(r.Accounts) == 0 && len(r.Transactions) == 0
}

// BalanceAuditor recomputes cached amounts and balances from the lines.
// The balance maintainer keeps them right on every write; the auditor is
// the independent check, and with repair enabled it rewrites drifted values.
type BalanceAuditor struct {
	store  *storage.Store
	repair bool
}

func NewBalanceAuditor(store *storage.Store, repair bool) *BalanceAuditor {
	return &BalanceAuditor{store: store, repair: repair}
}

// Audit checks the scope. A repairing auditor works in one write scope;
// a read-only one reads a snapshot and never takes the write lock.
func (a *BalanceAuditor) Audit(ctx context.Context, scope AuditScope) (AuditReport, error) {
	var report AuditReport
	withTx := a.store.WithReadTx
	if a.repair {
		withTx = a.store.WithTx
	}
	err := withTx(ctx, "audit balances", func(tx *storage.Tx) error {
		var err error
		if scope.AccountID != nil || scope.TransactionID == nil {
			if report.Accounts, err = tx.AccountDrift(ctx, scope.AccountID); err != nil {
				return err
			}
		}
		if scope.TransactionID != nil || scope.AccountID == nil {
			if report.Transactions, err = tx.TransactionDrift(ctx, scope.TransactionID); err != nil {
				return err
			}
		}
		if !a.repair || report.Clean() {
			return nil
		}

		for _, d := range report.Transactions {
			if err := tx.SetTransactionAmount(ctx, d.ID, d.Computed); err != nil {
				return err
			}
		}
		for _, d := range report.Accounts {
			if err := tx.SetAccountBalance(ctx, d.ID, d.Computed); err != nil {
				return err
			}
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit balances: %w", err)
	}

	for _, d := range append(report.Accounts, report.Transactions...) {
		slog.WarnContext(ctx, "Cached total out of line with its lines",
			"entity", d.Entity,
			"id", d.ID,
			"cached_cents", d.Cached.Cents,
			"computed_cents", d.Computed.Cents,
			"repaired", report.Repaired)
	}
	return report, nil
}

// AuditProcessorConfig holds configuration for the periodic audit.
type AuditProcessorConfig struct {
	// Interval between full audits (default: 1h)
	Interval time.Duration
}

func DefaultAuditProcessorConfig() AuditProcessorConfig {
	return AuditProcessorConfig{Interval: time.Hour}
}

// AuditProcessor runs a full audit on startup and then on every interval.
type AuditProcessor struct {
	auditor *BalanceAuditor
	config  AuditProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAuditProcessor(auditor *BalanceAuditor, config AuditProcessorConfig) *AuditProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultAuditProcessorConfig().Interval
	}
	return &AuditProcessor{auditor: auditor, config: config}
}

// Start begins the audit loop. Returns an error if already running.
func (p *AuditProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("audit processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Audit processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (p *AuditProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Audit processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Audit processor stop timed out")
		return ctx.Err()
	}
}

func (p *AuditProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AuditProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *AuditProcessor) runOnce(ctx context.Context) {
	report, err := p.auditor.Audit(ctx, AuditScope{})
	if err != nil {
		slog.ErrorContext(ctx, "Periodic balance audit failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Periodic balance audit complete",
		"account_drift", len(report.Accounts),
		"transaction_drift", len(report.Transactions),
		"repaired", report.Repaired)
}
