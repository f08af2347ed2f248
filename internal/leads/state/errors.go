package state

import (
	"errors"
	"fmt"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConflictError reports a status precondition mismatch: the lead moved
// between the caller's read and the locked re-read. Callers should reload
// and re-derive intent rather than retry the same mutation.
type ConflictError struct {
	LeadID   uuid.UUID
	Expected domain.Status
	Actual   domain.Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lead %s is %s, expected %s", e.LeadID, e.Actual, e.Expected)
}

// InvalidTransitionError reports a (from, to) pair absent from the allowed
// transition table. This is a logic or ordering bug, never retried.
type InvalidTransitionError struct {
	LeadID uuid.UUID
	From   domain.Status
	To     domain.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not in the allowed table (lead %s)", e.From, e.To, e.LeadID)
}

// ErrTransient marks infrastructure failures (lock timeout, connectivity)
// where retrying the whole event from the top is safe, because the ledger
// and precondition checks make a replay idempotent.
var ErrTransient = errors.New("transient store error")

// pgLockNotAvailable is raised when lock_timeout expires while waiting for
// the row lock.
const pgLockNotAvailable = "55P03"

// classify wraps lock-wait timeouts as transient so callers can retry.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

// IsTransient reports whether the error is safe to retry from the top of the
// event.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsConflict reports whether the error is a status precondition mismatch.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
