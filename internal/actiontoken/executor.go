package actiontoken

import (
	"context"
	"errors"
	"time"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Executor validates and atomically consumes action tokens. Token consumption
// and the lead status transition happen inside one transaction under the same
// row lock the state machine uses, so a token can never be replayed and a
// crash can never leave a consumed token without its transition (or vice
// versa).
type Executor struct {
	tokens *Repository
	leads  *repository.Repository
	bus    events.Bus
	log    *logger.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewExecutor(tokens *Repository, leads *repository.Repository, bus events.Bus, ttl time.Duration, log *logger.Logger) *Executor {
	return &Executor{
		tokens: tokens,
		leads:  leads,
		bus:    bus,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a single-use token authorizing one action on one lead while
// it remains in its current status. Returns the wire token for the link; the
// secret is stored only as a bcrypt hash.
func (e *Executor) Issue(ctx context.Context, leadID uuid.UUID, action Action, requiredStatus domain.Status) (string, Record, error) {
	target, ok := TargetStatus(action, requiredStatus)
	if !ok || !domain.CanTransition(requiredStatus, target) {
		return "", Record{}, &TokenError{Reason: ReasonWrongAction}
	}

	secret, err := newSecret()
	if err != nil {
		return "", Record{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", Record{}, err
	}

	rec := Record{
		ID:             uuid.New(),
		SecretHash:     string(hash),
		LeadID:         leadID,
		Action:         action,
		RequiredStatus: requiredStatus,
		ExpiresAt:      e.now().Add(e.ttl),
	}

	stored, err := e.tokens.Insert(ctx, rec)
	if err != nil {
		return "", Record{}, err
	}

	return Format(stored.ID, secret), stored, nil
}

// Execute consumes a token and applies its transition.
//
// Validation covers existence, secret, expiry, prior consumption, the
// requested action, and that the lead still holds the status recorded at
// issue time. All checks and both writes happen under row locks on the token
// and the lead, inside a single transaction.
func (e *Executor) Execute(ctx context.Context, token string, action Action) (repository.Lead, error) {
	id, secret, err := Parse(token)
	if err != nil {
		return repository.Lead{}, &TokenError{Reason: ReasonNotFound}
	}

	tx, err := e.leads.Pool().Begin(ctx)
	if err != nil {
		return repository.Lead{}, err
	}
	defer tx.Rollback(ctx)

	rec, err := e.tokens.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return repository.Lead{}, &TokenError{Reason: ReasonNotFound}
		}
		return repository.Lead{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.SecretHash), []byte(secret)) != nil {
		return repository.Lead{}, &TokenError{Reason: ReasonBadSecret}
	}

	lead, err := e.leads.GetForUpdateTx(ctx, tx, rec.LeadID)
	if err != nil {
		return repository.Lead{}, err
	}

	if tokenErr := Validate(rec, action, lead.Status, e.now()); tokenErr != nil {
		return repository.Lead{}, tokenErr
	}

	target, ok := TargetStatus(rec.Action, rec.RequiredStatus)
	if !ok || !domain.CanTransition(rec.RequiredStatus, target) {
		return repository.Lead{}, &TokenError{Reason: ReasonWrongAction}
	}

	if err := e.tokens.MarkConsumedTx(ctx, tx, rec.ID, e.now()); err != nil {
		return repository.Lead{}, err
	}

	updated, err := e.leads.UpdateStatusTx(ctx, tx, rec.LeadID, target, nil)
	if err != nil {
		return repository.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Lead{}, err
	}

	e.log.Info("action token executed",
		"lead_id", rec.LeadID, "action", rec.Action, "from", rec.RequiredStatus, "to", target)

	if e.bus != nil {
		e.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    updated.ID,
			Phone:     updated.Phone,
			OldStatus: rec.RequiredStatus,
			NewStatus: updated.Status,
			Reason:    "operator:" + string(rec.Action),
		})
	}

	return updated, nil
}

// Validate applies the token acceptance rules against the lead's current
// status at a given instant. Returns nil when the token may be consumed.
func Validate(rec Record, action Action, leadStatus domain.Status, now time.Time) *TokenError {
	if rec.ConsumedAt != nil {
		return &TokenError{Reason: ReasonConsumed}
	}
	if !now.Before(rec.ExpiresAt) {
		return &TokenError{Reason: ReasonExpired}
	}
	if rec.Action != action {
		return &TokenError{Reason: ReasonWrongAction}
	}
	if leadStatus != rec.RequiredStatus {
		return &TokenError{Reason: ReasonStatusMismatch, CurrentStatus: leadStatus}
	}
	return nil
}
