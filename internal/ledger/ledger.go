// Package ledger implements the idempotent event ledger: a durable record of
// externally-identified events already processed. A row's existence is the
// sole source of truth for "already handled".
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types recorded in the ledger.
const (
	TypeMessage  = "message"
	TypePayment  = "payment"
	TypeReminder = "reminder"
)

type Ledger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// CheckProcessed reports whether the event was already handled. It is a pure
// read and must be called before any mutating work begins.
func (l *Ledger) CheckProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// RecordProcessed marks the event as handled. It must be called only after
// every side effect for the event has completed; a crash before this call
// causes a full, idempotency-protected replay on redelivery.
//
// Concurrent deliveries race on the event_id primary key; the insert is a
// no-op for the loser, which is exactly the arbitration we want.
func (l *Ledger) RecordProcessed(ctx context.Context, eventID, eventType string, leadID *uuid.UUID) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO processed_events (event_id, event_type, lead_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, leadID)
	return err
}

// Prune removes ledger rows older than the cutoff. Safe because pruned rows
// only affect replay protection for events far beyond any redelivery horizon.
func (l *Ledger) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM processed_events WHERE processed_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReminderEventID builds the synthetic ledger id for a scheduled reminder.
// Bucketing by day makes a crashed-and-replayed sweep idempotent without
// blocking a legitimate reminder on a later day.
func ReminderEventID(kind string, leadID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("reminder:%s:%s:%s", kind, leadID, day.UTC().Format("2006-01-02"))
}
