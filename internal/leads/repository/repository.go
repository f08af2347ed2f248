package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

const leadColumns = `id, phone, name, status, step, answers, time_windows, deposit_session_ref,
	last_client_message_at, qualifying_reminder_sent_at, deposit_reminder_sent_at, created_at, updated_at`

// Lead is the aggregate root of one customer's booking conversation.
type Lead struct {
	ID                       uuid.UUID
	Phone                    string
	Name                     *string
	Status                   domain.Status
	Step                     int
	Answers                  map[string]string
	TimeWindows              []string
	DepositSessionRef        *string
	LastClientMessageAt      *time.Time
	QualifyingReminderSentAt *time.Time
	DepositReminderSentAt    *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for transaction-scoped callers
// (state machine, action-token executor).
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var lead Lead
	var answers, windows []byte
	var status string

	err := row.Scan(
		&lead.ID, &lead.Phone, &lead.Name, &status, &lead.Step, &answers, &windows,
		&lead.DepositSessionRef, &lead.LastClientMessageAt,
		&lead.QualifyingReminderSentAt, &lead.DepositReminderSentAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}

	lead.Status = domain.Status(status)
	if err := json.Unmarshal(answers, &lead.Answers); err != nil {
		return Lead{}, err
	}
	if err := json.Unmarshal(windows, &lead.TimeWindows); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// Create inserts a fresh lead in the initial status.
func (r *Repository) Create(ctx context.Context, phone string, name *string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (phone, name, status)
		VALUES ($1, $2, $3)
		RETURNING `+leadColumns,
		phone, name, string(domain.InitialStatus))
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// GetActiveByPhone returns the non-terminal lead for a contact, if any.
// The partial unique index on leads(phone) guarantees at most one exists.
func (r *Repository) GetActiveByPhone(ctx context.Context, phone string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE phone = $1
		  AND status NOT IN ('BOOKED', 'REJECTED', 'WAITLISTED', 'OPTOUT')`,
		phone)
	return scanLead(row)
}

// GetLatestByPhone returns the most recent lead for a contact regardless of
// status. Used for opt-out re-engagement, where the active lookup finds nothing.
func (r *Repository) GetLatestByPhone(ctx context.Context, phone string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		phone)
	return scanLead(row)
}

// GetByDepositSessionRef resolves a payment webhook back to its lead.
func (r *Repository) GetByDepositSessionRef(ctx context.Context, ref string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE deposit_session_ref = $1`, ref)
	return scanLead(row)
}

// List returns leads for the admin projection, newest first.
func (r *Repository) List(ctx context.Context, status *domain.Status, limit, offset int) ([]Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
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

// TouchLastClientMessage records the arrival of an inbound client message,
// which re-opens the free-form send window and clears reminder markers so a
// re-silenced lead can be reminded again.
func (r *Repository) TouchLastClientMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET last_client_message_at = $2,
		    qualifying_reminder_sent_at = NULL,
		    deposit_reminder_sent_at = NULL,
		    updated_at = now()
		WHERE id = $1`,
		id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceStep moves the qualification step counter forward only if the lead
// is still at the expected step. Mirrors the state machine's precondition
// pattern so a redelivered inbound message cannot advance the step twice.
func (r *Repository) AdvanceStep(ctx context.Context, id uuid.UUID, fromStep int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET step = step + 1, updated_at = now()
		WHERE id = $1 AND step = $2`,
		id, fromStep)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SaveAnswer stores one qualification answer keyed by question id. The
// payload is opaque to this core.
func (r *Repository) SaveAnswer(ctx context.Context, id uuid.UUID, questionKey, value string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET answers = answers || jsonb_build_object($2::text, $3::text), updated_at = now()
		WHERE id = $1`,
		id, questionKey, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTimeWindow records one availability window supplied by the client.
func (r *Repository) AppendTimeWindow(ctx context.Context, id uuid.UUID, window string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET time_windows = time_windows || to_jsonb($2::text), updated_at = now()
		WHERE id = $1`,
		id, window)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDepositSessionRef attaches the checkout-session reference issued by the
// payment provider so its webhooks can be resolved back to this lead.
func (r *Repository) SetDepositSessionRef(ctx context.Context, id uuid.UUID, ref string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET deposit_session_ref = $2, updated_at = now() WHERE id = $1`,
		id, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetName stores the consumer name once the script has collected it.
func (r *Repository) SetName(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET name = $2, updated_at = now() WHERE id = $1`,
		id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdateTx reads a lead under an exclusive row lock inside the given
// transaction. This is the locked re-read used by the state machine and the
// action-token executor.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Lead, error) {
	row := tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
	return scanLead(row)
}

// UpdateStatusTx writes the new status (and optionally step) inside the given
// transaction. Callers must hold the row lock via GetForUpdateTx.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.Status, step *int) (Lead, error) {
	var row pgx.Row
	if step != nil {
		row = tx.QueryRow(ctx, `
			UPDATE leads SET status = $2, step = $3, updated_at = now()
			WHERE id = $1
			RETURNING `+leadColumns,
			id, string(status), *step)
	} else {
		row = tx.QueryRow(ctx, `
			UPDATE leads SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+leadColumns,
			id, string(status))
	}
	return scanLead(row)
}
