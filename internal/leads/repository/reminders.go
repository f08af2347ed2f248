package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MarkQualifyingReminderSent stamps the qualifying reminder marker, but only
// if it has not been stamped since the client's last message. Returns false
// when another scheduler pass won the race.
func (r *Repository) MarkQualifyingReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET qualifying_reminder_sent_at = $2, updated_at = now()
		WHERE id = $1 AND qualifying_reminder_sent_at IS NULL`,
		id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDepositReminderSent stamps the deposit reminder marker under the same
// only-once contract as MarkQualifyingReminderSent.
func (r *Repository) MarkDepositReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET deposit_reminder_sent_at = $2, updated_at = now()
		WHERE id = $1 AND deposit_reminder_sent_at IS NULL`,
		id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListQualifyingReminderDue returns qualifying leads whose client has been
// silent since before the cutoff and who have not been reminded yet.
func (r *Repository) ListQualifyingReminderDue(ctx context.Context, silentBefore time.Time, limit int) ([]Lead, error) {
	return r.listDue(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'QUALIFYING'
		  AND last_client_message_at IS NOT NULL
		  AND last_client_message_at < $1
		  AND qualifying_reminder_sent_at IS NULL
		ORDER BY last_client_message_at ASC
		LIMIT $2`,
		silentBefore, limit)
}

// ListDepositReminderDue returns deposit-awaiting leads due a payment nudge.
func (r *Repository) ListDepositReminderDue(ctx context.Context, silentBefore time.Time, limit int) ([]Lead, error) {
	return r.listDue(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'AWAITING_DEPOSIT'
		  AND last_client_message_at IS NOT NULL
		  AND last_client_message_at < $1
		  AND deposit_reminder_sent_at IS NULL
		ORDER BY last_client_message_at ASC
		LIMIT $2`,
		silentBefore, limit)
}

// ListAbandonDue returns reminded qualifying leads still silent past the
// abandon cutoff.
func (r *Repository) ListAbandonDue(ctx context.Context, silentBefore time.Time, limit int) ([]Lead, error) {
	return r.listDue(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'QUALIFYING'
		  AND qualifying_reminder_sent_at IS NOT NULL
		  AND last_client_message_at < $1
		ORDER BY last_client_message_at ASC
		LIMIT $2`,
		silentBefore, limit)
}

// ListStaleDue returns reminded deposit-awaiting leads still silent past the
// stale cutoff.
func (r *Repository) ListStaleDue(ctx context.Context, silentBefore time.Time, limit int) ([]Lead, error) {
	return r.listDue(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'AWAITING_DEPOSIT'
		  AND deposit_reminder_sent_at IS NOT NULL
		  AND last_client_message_at < $1
		ORDER BY last_client_message_at ASC
		LIMIT $2`,
		silentBefore, limit)
}

func (r *Repository) listDue(ctx context.Context, query string, silentBefore time.Time, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, query, silentBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
