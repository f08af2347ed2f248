// Package reminders runs the scheduled nudges and inactivity expiries: one
// qualifying reminder and one deposit reminder per lead per silence period,
// plus ABANDONED and STALE transitions once a lead stays quiet past the
// cutoffs. A reminder only counts once a message actually went out; marking
// and ledger recording happen strictly after a sent result, so a degraded
// send leaves the lead eligible for the next sweep.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/ledger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// Reminder kinds, also embedded in the synthetic ledger event ids.
const (
	KindQualifying = "qualifying"
	KindDeposit    = "deposit"
)

const sweepBatchSize = 200

const (
	msgQualifyingNudge = "Just checking in! We still need a few details to get your tattoo request to the artist. Reply whenever you're ready."
	msgDepositNudge    = "A quick reminder that your slot is held until the deposit comes in. The payment link is still active."

	tmplQualifyingNudge = "reminder_qualifying"
	tmplDepositNudge    = "reminder_deposit"
)

// LeadStore is the persistence surface the sweeps need.
// Satisfied by repository.Repository.
type LeadStore interface {
	ListQualifyingReminderDue(ctx context.Context, silentBefore time.Time, limit int) ([]repository.Lead, error)
	ListDepositReminderDue(ctx context.Context, silentBefore time.Time, limit int) ([]repository.Lead, error)
	ListAbandonDue(ctx context.Context, silentBefore time.Time, limit int) ([]repository.Lead, error)
	ListStaleDue(ctx context.Context, silentBefore time.Time, limit int) ([]repository.Lead, error)
	MarkQualifyingReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkDepositReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
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

// Service evaluates reminder and expiry rules over silent leads.
type Service struct {
	leads   LeadStore
	machine StateMachine
	ledger  EventLedger
	replies ReplySender
	bus     events.Bus
	cfg     config.ReminderConfig
	now     func() time.Time
	log     *logger.Logger
}

func NewService(leads LeadStore, machine StateMachine, ledg EventLedger, replies ReplySender, bus events.Bus, cfg config.ReminderConfig, log *logger.Logger) *Service {
	return &Service{
		leads:   leads,
		machine: machine,
		ledger:  ledg,
		replies: replies,
		bus:     bus,
		cfg:     cfg,
		now:     time.Now,
		log:     log,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Sweep runs one full pass: both reminder kinds, then the expiries.
// Per-lead failures are logged and skipped so one bad lead cannot stall
// the batch; only listing failures abort the sweep.
func (s *Service) Sweep(ctx context.Context) error {
	if err := s.sweepQualifyingReminders(ctx); err != nil {
		return err
	}
	if err := s.sweepDepositReminders(ctx); err != nil {
		return err
	}
	if err := s.sweepAbandoned(ctx); err != nil {
		return err
	}
	return s.sweepStale(ctx)
}

func (s *Service) sweepQualifyingReminders(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.GetQualifyingReminderAfter())
	due, err := s.leads.ListQualifyingReminderDue(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list qualifying reminders: %w", err)
	}
	for _, lead := range due {
		s.remind(ctx, lead, KindQualifying, msgQualifyingNudge, tmplQualifyingNudge, s.leads.MarkQualifyingReminderSent)
	}
	return nil
}

func (s *Service) sweepDepositReminders(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.GetDepositReminderAfter())
	due, err := s.leads.ListDepositReminderDue(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list deposit reminders: %w", err)
	}
	for _, lead := range due {
		s.remind(ctx, lead, KindDeposit, msgDepositNudge, tmplDepositNudge, s.leads.MarkDepositReminderSent)
	}
	return nil
}

// remind delivers one nudge. Ordering is the whole point here: the send
// happens first, and the marker plus ledger row are written only on a sent
// result. A degraded or failed send writes nothing, keeping the lead in the
// next sweep's candidate set.
func (s *Service) remind(ctx context.Context, lead repository.Lead, kind, text, templateKey string, mark func(context.Context, uuid.UUID, time.Time) (bool, error)) {
	now := s.now()
	eventID := ledger.ReminderEventID(kind, lead.ID, now)

	done, err := s.ledger.CheckProcessed(ctx, eventID)
	if err != nil {
		s.log.DatabaseError("check reminder ledger", err)
		return
	}
	if done {
		return
	}

	res := s.replies.Send(ctx, lead, text, templateKey, nil)
	if !res.Sent() {
		if res.Err != nil {
			s.log.WithLead(lead.ID.String()).Error("reminder not delivered", "kind", kind, "status", string(res.Status), "error", res.Err)
		}
		return
	}

	marked, err := mark(ctx, lead.ID, now)
	if err != nil {
		s.log.DatabaseError("mark reminder sent", err)
		return
	}
	if !marked {
		// Another sweep instance sent and marked first.
		return
	}
	if err := s.ledger.RecordProcessed(ctx, eventID, ledger.TypeReminder, &lead.ID); err != nil {
		s.log.DatabaseError("record reminder", err)
		return
	}

	s.bus.Publish(ctx, events.ReminderSent{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Kind:      kind,
	})
	s.log.WithLead(lead.ID.String()).Info("reminder sent", "kind", kind)
}

func (s *Service) sweepAbandoned(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.GetAbandonAfter())
	due, err := s.leads.ListAbandonDue(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list abandon candidates: %w", err)
	}
	for _, lead := range due {
		s.expire(ctx, lead, domain.StatusQualifying, domain.StatusAbandoned, "system:abandoned")
	}
	return nil
}

func (s *Service) sweepStale(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.GetStaleAfter())
	due, err := s.leads.ListStaleDue(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list stale candidates: %w", err)
	}
	for _, lead := range due {
		s.expire(ctx, lead, domain.StatusAwaitingDeposit, domain.StatusStale, "system:stale")
	}
	return nil
}

// expire moves one silent lead to its inactivity status. The transition
// re-checks status under lock, so a client who replies mid-sweep wins the
// race and the expiry is dropped.
func (s *Service) expire(ctx context.Context, lead repository.Lead, from, to domain.Status, reason string) {
	if _, err := s.machine.Transition(ctx, lead.ID, from, to, reason); err != nil {
		s.log.WithLead(lead.ID.String()).Warn("expiry transition skipped", "to", string(to), "error", err)
	}
}
