package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

type fakeDeps struct {
	lead *repository.Lead

	processed map[string]bool
	recorded  []string

	sent      int
	published []events.Event
}

func newFakeDeps(status domain.Status, sessionRef string) *fakeDeps {
	ref := sessionRef
	return &fakeDeps{
		lead: &repository.Lead{
			ID:                uuid.New(),
			Phone:             "+447700900456",
			Status:            status,
			DepositSessionRef: &ref,
		},
		processed: map[string]bool{},
	}
}

func (f *fakeDeps) GetByDepositSessionRef(_ context.Context, ref string) (repository.Lead, error) {
	if f.lead != nil && f.lead.DepositSessionRef != nil && *f.lead.DepositSessionRef == ref {
		return *f.lead, nil
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeDeps) Transition(_ context.Context, leadID uuid.UUID, from, to domain.Status, reason string) (repository.Lead, error) {
	if !domain.CanTransition(from, to) {
		return repository.Lead{}, &state.InvalidTransitionError{LeadID: leadID, From: from, To: to}
	}
	if f.lead.Status != from {
		return repository.Lead{}, &state.ConflictError{LeadID: leadID, Expected: from, Actual: f.lead.Status}
	}
	f.lead.Status = to
	return *f.lead, nil
}

func (f *fakeDeps) CheckProcessed(_ context.Context, eventID string) (bool, error) {
	return f.processed[eventID], nil
}

func (f *fakeDeps) RecordProcessed(_ context.Context, eventID, eventType string, leadID *uuid.UUID) error {
	f.processed[eventID] = true
	f.recorded = append(f.recorded, eventID)
	return nil
}

func (f *fakeDeps) Send(_ context.Context, lead repository.Lead, text, templateKey string, params []string) outbound.SendResult {
	f.sent++
	return outbound.SendResult{Status: outbound.StatusSent}
}

func (f *fakeDeps) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeDeps) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeDeps) Subscribe(eventName string, handler events.Handler) {}

func newTestService(f *fakeDeps) *Service {
	return NewService(f, f, f, f, f, logger.New("development"))
}

func TestHandleEventCompletedMovesToScheduling(t *testing.T) {
	f := newFakeDeps(domain.StatusAwaitingDeposit, "cs_123")
	s := newTestService(f)

	ev := PaymentEvent{EventID: "evt_1", SessionRef: "cs_123", Outcome: OutcomeCompleted, AmountCents: 5000}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if f.lead.Status != domain.StatusCollectingTimeWindows {
		t.Fatalf("status = %s, want COLLECTING_TIME_WINDOWS", f.lead.Status)
	}
	if f.sent != 1 {
		t.Fatalf("sent %d scheduling prompts, want 1", f.sent)
	}
	if len(f.published) != 1 {
		t.Fatalf("published %d events, want 1", len(f.published))
	}
	paid, ok := f.published[0].(events.DepositPaid)
	if !ok {
		t.Fatalf("published %T, want DepositPaid", f.published[0])
	}
	if paid.SessionRef != "cs_123" || paid.AmountCents != 5000 {
		t.Fatalf("DepositPaid = %+v", paid)
	}
}

func TestHandleEventDuplicateSkipped(t *testing.T) {
	f := newFakeDeps(domain.StatusAwaitingDeposit, "cs_123")
	s := newTestService(f)

	ev := PaymentEvent{EventID: "evt_1", SessionRef: "cs_123", Outcome: OutcomeCompleted}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(f.recorded) != 1 {
		t.Fatalf("recorded %d times, want 1", len(f.recorded))
	}
	if len(f.published) != 1 {
		t.Fatalf("published %d events for a duplicate delivery", len(f.published))
	}
}

func TestHandleEventExpired(t *testing.T) {
	f := newFakeDeps(domain.StatusAwaitingDeposit, "cs_456")
	s := newTestService(f)

	ev := PaymentEvent{EventID: "evt_2", SessionRef: "cs_456", Outcome: OutcomeExpired}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if f.lead.Status != domain.StatusDepositExpired {
		t.Fatalf("status = %s, want DEPOSIT_EXPIRED", f.lead.Status)
	}
	if len(f.published) != 0 {
		t.Fatalf("published %d events for an expiry", len(f.published))
	}
	if f.sent != 1 {
		t.Fatalf("sent %d expiry notices, want 1", f.sent)
	}
}

func TestHandleEventLeadAlreadyMovedSettles(t *testing.T) {
	// Client opted out between checkout and the provider callback. The
	// completion cannot apply, but the event must settle so the provider
	// stops retrying.
	f := newFakeDeps(domain.StatusOptOut, "cs_789")
	s := newTestService(f)

	ev := PaymentEvent{EventID: "evt_3", SessionRef: "cs_789", Outcome: OutcomeCompleted}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if f.lead.Status != domain.StatusOptOut {
		t.Fatalf("status = %s, opt-out was overridden by a payment", f.lead.Status)
	}
	if len(f.recorded) != 1 {
		t.Fatal("conflicting event was not settled")
	}
}

func TestHandleEventUnknownSessionSettles(t *testing.T) {
	f := newFakeDeps(domain.StatusAwaitingDeposit, "cs_123")
	s := newTestService(f)

	ev := PaymentEvent{EventID: "evt_4", SessionRef: "cs_does_not_exist", Outcome: OutcomeCompleted}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(f.recorded) != 1 {
		t.Fatal("unknown-session event was not settled")
	}
	if f.lead.Status != domain.StatusAwaitingDeposit {
		t.Fatalf("status = %s changed for an unrelated session", f.lead.Status)
	}
}

func TestHandleEventUnknownOutcomeSettles(t *testing.T) {
	f := newFakeDeps(domain.StatusAwaitingDeposit, "cs_123")
	s := newTestService(f)

	ev := PaymentEvent{EventID: "evt_5", SessionRef: "cs_123", Outcome: "refunded"}
	if err := s.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if f.lead.Status != domain.StatusAwaitingDeposit {
		t.Fatalf("status = %s changed for an unhandled outcome", f.lead.Status)
	}
	if len(f.recorded) != 1 {
		t.Fatal("unhandled outcome was not settled")
	}
}
