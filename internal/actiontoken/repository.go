package actiontoken

import (
	"context"
	"errors"
	"time"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("action token not found")

const tokenColumns = `id, secret_hash, lead_id, action, required_status, expires_at, consumed_at, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var action, required string

	err := row.Scan(
		&rec.ID, &rec.SecretHash, &rec.LeadID, &action, &required,
		&rec.ExpiresAt, &rec.ConsumedAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	rec.Action = Action(action)
	rec.RequiredStatus = domain.Status(required)
	return rec, nil
}

// Insert stores a freshly issued token.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO action_tokens (id, secret_hash, lead_id, action, required_status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+tokenColumns,
		rec.ID, rec.SecretHash, rec.LeadID, string(rec.Action), string(rec.RequiredStatus), rec.ExpiresAt)
	return scanRecord(row)
}

// GetForUpdateTx reads a token under an exclusive row lock inside the given
// transaction, so consumption and the lead transition commit as one unit.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Record, error) {
	row := tx.QueryRow(ctx, `SELECT `+tokenColumns+` FROM action_tokens WHERE id = $1 FOR UPDATE`, id)
	return scanRecord(row)
}

// MarkConsumedTx stamps the token inside the given transaction.
func (r *Repository) MarkConsumedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE action_tokens SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`,
		id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
