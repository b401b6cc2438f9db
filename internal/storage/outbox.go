package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"mybudget/internal/core"
)

// PendingEvents returns unpublished outbox events in insertion order,
// skipping events that already failed maxAttempts times. Rows whose payload
// cannot be decoded are retired by setting their attempts to maxAttempts,
// so they stop taking batch slots.
func (s *Store) PendingEvents(ctx context.Context, limit, maxAttempts int) ([]core.LedgerEvent, error) {
	const op = "pending events"
	if limit <= 0 {
		limit = 50
	}
	events, unreadable, err := s.pendingEvents(ctx, limit, maxAttempts)
	if err != nil {
		return nil, classify(op, err)
	}
	for _, id := range unreadable {
		if _, err := s.exec(ctx,
			`UPDATE ledger_events SET attempts = ? WHERE event_id = ?`, maxAttempts, id); err != nil {
			return nil, classify(op, fmt.Errorf("retire event %s: %w", id, err))
		}
	}
	return events, nil
}

func (s *Store) pendingEvents(ctx context.Context, limit, maxAttempts int) (events []core.LedgerEvent, unreadable []string, err error) {
	rows, err := s.query(ctx,
		`SELECT event_id, payload, attempts FROM ledger_events
		 WHERE published_at IS NULL AND attempts < ?
		 ORDER BY seq
		 LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, payload string
			attempts    int
		)
		if err := rows.Scan(&id, &payload, &attempts); err != nil {
			return nil, nil, fmt.Errorf("scan event: %w", err)
		}
		var ev core.LedgerEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.ErrorContext(ctx, "Retiring unreadable outbox event", "event_id", id, "error", err)
			unreadable = append(unreadable, id)
			continue
		}
		ev.Attempts = attempts
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return events, unreadable, nil
}

func (s *Store) MarkEventPublished(ctx context.Context, eventID string) error {
	if _, err := s.exec(ctx,
		`UPDATE ledger_events SET published_at = CURRENT_TIMESTAMP WHERE event_id = ?`, eventID); err != nil {
		return classify("mark event published", err)
	}
	return nil
}

func (s *Store) MarkEventFailed(ctx context.Context, eventID string) error {
	if _, err := s.exec(ctx,
		`UPDATE ledger_events SET attempts = attempts + 1 WHERE event_id = ?`, eventID); err != nil {
		return classify("mark event failed", err)
	}
	return nil
}

// OutboxStats returns pending and published event counts.
func (s *Store) OutboxStats(ctx context.Context) (pending, published int64, err error) {
	err = s.queryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN published_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN published_at IS NULL THEN 0 ELSE 1 END), 0)
		 FROM ledger_events`).Scan(&pending, &published)
	if err != nil {
		return 0, 0, classify("outbox stats", err)
	}
	return pending, published, nil
}
