// Package state implements the lead state machine: the single writer of lead
// status. All status changes, from any actor, pass through Transition so the
// lock-then-precondition-check-then-mutate discipline holds across processes.
package state

import (
	"context"
	"time"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// lockTimeout bounds how long a transition waits for the row lock before
// surfacing a transient error to the caller.
const lockTimeout = "2s"

// TransitionRetries bounds how often callers retry a transient failure
// before giving up on the event delivery.
const TransitionRetries = 3

type Machine struct {
	repo *repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

func New(repo *repository.Repository, bus events.Bus, log *logger.Logger) *Machine {
	return &Machine{repo: repo, bus: bus, log: log}
}

// Transition moves a lead from an expected status to a new one.
//
// The lead row is locked for the duration of the check-and-mutate. The status
// is re-read under the lock and compared against `from`; a mismatch yields a
// *ConflictError with no mutation. The (from, to) pair is then validated
// against the allowed-transition table; a pair outside the table yields an
// *InvalidTransitionError. Lock-wait timeouts come back wrapped in
// ErrTransient and may be retried by the caller.
//
// The status-changed event is published only after commit, so observers never
// see a state that was rolled back.
func (m *Machine) Transition(ctx context.Context, leadID uuid.UUID, from, to domain.Status, reason string) (repository.Lead, error) {
	return m.transition(ctx, leadID, from, to, nil, reason)
}

// TransitionWithStep is Transition with an explicit step value applied in the
// same mutation, used when entering or re-entering the qualifying phase.
func (m *Machine) TransitionWithStep(ctx context.Context, leadID uuid.UUID, from, to domain.Status, step int, reason string) (repository.Lead, error) {
	return m.transition(ctx, leadID, from, to, &step, reason)
}

func (m *Machine) transition(ctx context.Context, leadID uuid.UUID, from, to domain.Status, step *int, reason string) (repository.Lead, error) {
	if !domain.CanTransition(from, to) {
		// Rejected before any locking: the table is the single source of
		// truth and an absent entry is a bug in the caller, not a race.
		err := &InvalidTransitionError{LeadID: leadID, From: from, To: to}
		m.log.Error("rejected transition outside allowed table",
			"lead_id", leadID, "from", from, "to", to, "reason", reason)
		return repository.Lead{}, err
	}

	tx, err := m.repo.Pool().Begin(ctx)
	if err != nil {
		return repository.Lead{}, classify(err)
	}
	defer tx.Rollback(ctx)

	lead, err := m.lockLead(ctx, tx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}

	if lead.Status != from {
		return repository.Lead{}, &ConflictError{LeadID: leadID, Expected: from, Actual: lead.Status}
	}

	updated, err := m.repo.UpdateStatusTx(ctx, tx, leadID, to, step)
	if err != nil {
		return repository.Lead{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Lead{}, classify(err)
	}

	m.log.Info("lead status changed",
		"lead_id", leadID, "from", from, "to", to, "reason", reason)
	m.publishChanged(ctx, updated, from, reason)

	return updated, nil
}

// ResetToNew is the recovery path for a lead carrying a status this
// build does not recognize. It bypasses the transition table, resets the lead
// to the initial status and step zero, and makes the bypass loudly
// observable: warning log plus a LeadStatusReset event.
func (m *Machine) ResetToNew(ctx context.Context, leadID uuid.UUID, prior domain.Status) (repository.Lead, error) {
	tx, err := m.repo.Pool().Begin(ctx)
	if err != nil {
		return repository.Lead{}, classify(err)
	}
	defer tx.Rollback(ctx)

	lead, err := m.lockLead(ctx, tx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}

	if lead.Status != prior {
		// Someone else already moved the lead; nothing to recover.
		return repository.Lead{}, &ConflictError{LeadID: leadID, Expected: prior, Actual: lead.Status}
	}

	step := 0
	updated, err := m.repo.UpdateStatusTx(ctx, tx, leadID, domain.InitialStatus, &step)
	if err != nil {
		return repository.Lead{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Lead{}, classify(err)
	}

	m.log.StatusReset(leadID.String(), string(prior))
	if m.bus != nil {
		m.bus.Publish(ctx, events.LeadStatusReset{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      leadID,
			PriorStatus: string(prior),
		})
	}

	return updated, nil
}

func (m *Machine) lockLead(ctx context.Context, tx pgx.Tx, leadID uuid.UUID) (repository.Lead, error) {
	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'"); err != nil {
		return repository.Lead{}, classify(err)
	}

	lead, err := m.repo.GetForUpdateTx(ctx, tx, leadID)
	if err != nil {
		return repository.Lead{}, classify(err)
	}
	return lead, nil
}

func (m *Machine) publishChanged(ctx context.Context, lead repository.Lead, from domain.Status, reason string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Phone:     lead.Phone,
		OldStatus: from,
		NewStatus: lead.Status,
		Reason:    reason,
	})
}

// Retry runs fn up to TransitionRetries times, backing off briefly, as long
// as the failure is transient. Conflict and table violations are surfaced
// immediately; they are not retryable.
func Retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < TransitionRetries; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return err
}
