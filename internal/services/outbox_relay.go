package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mybudget/internal/core"
)

// OutboxStore is the outbox side of the ledger store.
type OutboxStore interface {
	PendingEvents(ctx context.Context, limit, maxAttempts int) ([]core.LedgerEvent, error)
	MarkEventPublished(ctx context.Context, eventID string) error
	MarkEventFailed(ctx context.Context, eventID string) error
}

// EventPublisher delivers ledger events to the broker.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

// OutboxRelayConfig holds configuration for the outbox relay
type OutboxRelayConfig struct {
	// PollInterval is how often to check for pending events (default: 5s)
	PollInterval time.Duration

	// BatchSize is the max number of events published per poll (default: 50)
	BatchSize int

	// MaxAttempts is how many failed publishes an event gets before it is
	// left for manual inspection (default: 10)
	MaxAttempts int
}

func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		MaxAttempts:  10,
	}
}

// OutboxRelay publishes events recorded by the transaction writer. Events
// are written in the same scope as the ledger change, so a committed change
// is always published eventually and a rolled back one never is.
type OutboxRelay struct {
	store     OutboxStore
	publisher EventPublisher
	config    OutboxRelayConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxRelay(store OutboxStore, publisher EventPublisher, config OutboxRelayConfig) *OutboxRelay {
	def := DefaultOutboxRelayConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	return &OutboxRelay{store: store, publisher: publisher, config: config}
}

// Start begins the relay loop. Returns an error if already running.
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("outbox relay is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox relay started",
		"poll_interval", r.config.PollInterval,
		"batch_size", r.config.BatchSize)
	return nil
}

// Stop gracefully stops the relay and waits for the current batch.
func (r *OutboxRelay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	doneCh := r.doneCh
	r.mu.Unlock()

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Outbox relay stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox relay stop timed out")
		return ctx.Err()
	}
}

func (r *OutboxRelay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *OutboxRelay) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.PublishPending(ctx)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PublishPending(ctx)
		}
	}
}

// PublishPending publishes one batch and returns how many events went out.
func (r *OutboxRelay) PublishPending(ctx context.Context) int {
	events, err := r.store.PendingEvents(ctx, r.config.BatchSize, r.config.MaxAttempts)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pending events", "error", err)
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Publishing outbox batch", "count", len(events))

	published := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			return published
		}

		if err := r.publisher.PublishLedgerEvent(ctx, ev); err != nil {
			r.handleFailure(ctx, ev, err)
			// Keep ordering per batch: later events wait for the next poll.
			return published
		}
		if err := r.store.MarkEventPublished(ctx, ev.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark event published", "event_id", ev.ID, "error", err)
			return published
		}
		published++
	}
	return published
}

func (r *OutboxRelay) handleFailure(ctx context.Context, ev core.LedgerEvent, publishErr error) {
	slog.WarnContext(ctx, "Event publish failed",
		"event_id", ev.ID,
		"kind", ev.Kind,
		"attempt", ev.Attempts+1,
		"error", publishErr)

	if err := r.store.MarkEventFailed(ctx, ev.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to record publish attempt", "event_id", ev.ID, "error", err)
		return
	}
	if ev.Attempts+1 >= r.config.MaxAttempts {
		slog.ErrorContext(ctx, "Event publish failed permanently after max attempts",
			"event_id", ev.ID,
			"transaction_id", ev.TransactionID,
			"attempts", ev.Attempts+1)
	}
}
