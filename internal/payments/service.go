// Package payments settles deposit checkout outcomes delivered by the
// payment provider's webhook. Each provider event is idempotent via the
// event ledger and drives the lead's deposit transitions.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/ledger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// Checkout session outcomes accepted from the provider.
const (
	OutcomeCompleted = "completed"
	OutcomeExpired   = "expired"
)

const (
	msgDepositReceived = "Deposit received, thank you! When would you like to come in? Send us a day and time that suits you."
	msgDepositExpired  = "Your deposit link expired. Reply here and we'll send you a fresh one."
)

// PaymentEvent is one checkout session outcome from the provider webhook.
type PaymentEvent struct {
	EventID     string
	SessionRef  string
	Outcome     string
	AmountCents int64
}

// LeadFinder resolves the lead a checkout session belongs to.
// Satisfied by repository.Repository.
type LeadFinder interface {
	GetByDepositSessionRef(ctx context.Context, ref string) (repository.Lead, error)
}

// StateMachine is the guarded-transition surface. Satisfied by state.Machine.
type StateMachine interface {
	Transition(ctx context.Context, leadID uuid.UUID, from, to domain.Status, reason string) (repository.Lead, error)
}

// EventLedger is the idempotency surface. Satisfied by ledger.Ledger.
type EventLedger interface {
	CheckProcessed(ctx context.Context, eventID string) (bool, error)
	RecordProcessed(ctx context.Context, eventID, eventType string, leadID *uuid.UUID) error
}

// ReplySender sends outbound messages under the window policy.
// Satisfied by outbound.Policy.
type ReplySender interface {
	Send(ctx context.Context, lead repository.Lead, text, templateKey string, params []string) outbound.SendResult
}

// Service applies payment outcomes to leads.
type Service struct {
	leads   LeadFinder
	machine StateMachine
	ledger  EventLedger
	replies ReplySender
	bus     events.Bus
	log     *logger.Logger
}

func NewService(leads LeadFinder, machine StateMachine, ledg EventLedger, replies ReplySender, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:   leads,
		machine: machine,
		ledger:  ledg,
		replies: replies,
		bus:     bus,
		log:     log,
	}
}

// HandleEvent processes one provider event. A nil return settles the event;
// an error asks the provider for redelivery.
func (s *Service) HandleEvent(ctx context.Context, ev PaymentEvent) error {
	done, err := s.ledger.CheckProcessed(ctx, ev.EventID)
	if err != nil {
		return fmt.Errorf("ledger check %s: %w", ev.EventID, err)
	}
	if done {
		s.log.Debug("duplicate payment event skipped", "event_id", ev.EventID)
		return nil
	}

	lead, err := s.leads.GetByDepositSessionRef(ctx, ev.SessionRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Session for a lead we never issued, or a deleted lead. Settle
			// so the provider stops retrying.
			s.log.Warn("payment event for unknown session", "session_ref", ev.SessionRef, "event_id", ev.EventID)
			return s.record(ctx, ev, nil)
		}
		return fmt.Errorf("lookup session %s: %w", ev.SessionRef, err)
	}

	switch ev.Outcome {
	case OutcomeCompleted:
		return s.handleCompleted(ctx, ev, lead)
	case OutcomeExpired:
		return s.handleExpired(ctx, ev, lead)
	default:
		s.log.Warn("unrecognized payment outcome", "outcome", ev.Outcome, "event_id", ev.EventID)
		return s.record(ctx, ev, &lead.ID)
	}
}

// handleCompleted marks the deposit paid and immediately moves the lead into
// scheduling. The payment landed even if the lead drifted elsewhere, so a
// precondition conflict settles the event rather than failing it.
func (s *Service) handleCompleted(ctx context.Context, ev PaymentEvent, lead repository.Lead) error {
	paid, err := s.machine.Transition(ctx, lead.ID, domain.StatusAwaitingDeposit, domain.StatusDepositPaid, "payment:completed")
	if err != nil {
		if settled := s.settleTransitionError(ev, lead.ID, err); settled {
			return s.record(ctx, ev, &lead.ID)
		}
		return fmt.Errorf("mark deposit paid for lead %s: %w", lead.ID, err)
	}

	s.bus.Publish(ctx, events.DepositPaid{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		SessionRef:  ev.SessionRef,
		AmountCents: ev.AmountCents,
	})

	scheduling, err := s.machine.Transition(ctx, paid.ID, domain.StatusDepositPaid, domain.StatusCollectingTimeWindows, "payment:collect_windows")
	if err != nil {
		// DEPOSIT_PAID is durable; scheduling resumes on the client's next
		// message, so the event still settles.
		s.log.WithLead(lead.ID.String()).Warn("auto-advance to scheduling failed", "error", err)
		return s.record(ctx, ev, &lead.ID)
	}

	res := s.replies.Send(ctx, scheduling, msgDepositReceived, "deposit_received", nil)
	if !res.Sent() && res.Err != nil {
		s.log.WithLead(lead.ID.String()).Error("scheduling prompt not delivered", "status", string(res.Status), "error", res.Err)
	}
	return s.record(ctx, ev, &lead.ID)
}

func (s *Service) handleExpired(ctx context.Context, ev PaymentEvent, lead repository.Lead) error {
	expired, err := s.machine.Transition(ctx, lead.ID, domain.StatusAwaitingDeposit, domain.StatusDepositExpired, "payment:expired")
	if err != nil {
		if settled := s.settleTransitionError(ev, lead.ID, err); settled {
			return s.record(ctx, ev, &lead.ID)
		}
		return fmt.Errorf("mark deposit expired for lead %s: %w", lead.ID, err)
	}
	s.log.WithLead(lead.ID.String()).Info("deposit session expired", "session_ref", ev.SessionRef)

	res := s.replies.Send(ctx, expired, msgDepositExpired, "deposit_link", nil)
	if !res.Sent() && res.Err != nil {
		s.log.WithLead(lead.ID.String()).Error("expiry notice not delivered", "status", string(res.Status), "error", res.Err)
	}
	return s.record(ctx, ev, &lead.ID)
}

// settleTransitionError reports whether a failed transition should settle the
// provider event. Conflicts and illegal moves mean the lead already moved on;
// transient store errors demand redelivery.
func (s *Service) settleTransitionError(ev PaymentEvent, leadID uuid.UUID, err error) bool {
	var invalid *state.InvalidTransitionError
	if state.IsConflict(err) || errors.As(err, &invalid) {
		s.log.WithLead(leadID.String()).Warn("payment outcome ignored, lead already moved", "event_id", ev.EventID, "error", err)
		return true
	}
	return false
}

func (s *Service) record(ctx context.Context, ev PaymentEvent, leadID *uuid.UUID) error {
	if err := s.ledger.RecordProcessed(ctx, ev.EventID, ledger.TypePayment, leadID); err != nil {
		return fmt.Errorf("record event %s: %w", ev.EventID, err)
	}
	return nil
}
