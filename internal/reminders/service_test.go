package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

type fakeCfg struct{}

func (fakeCfg) GetQualifyingReminderAfter() time.Duration { return 4 * time.Hour }
func (fakeCfg) GetDepositReminderAfter() time.Duration    { return 24 * time.Hour }
func (fakeCfg) GetAbandonAfter() time.Duration            { return 72 * time.Hour }
func (fakeCfg) GetStaleAfter() time.Duration              { return 7 * 24 * time.Hour }
func (fakeCfg) GetLedgerRetention() time.Duration         { return 90 * 24 * time.Hour }

type fakeWorld struct {
	qualifyingDue []repository.Lead
	depositDue    []repository.Lead
	abandonDue    []repository.Lead
	staleDue      []repository.Lead

	leads map[uuid.UUID]*repository.Lead

	processed map[string]bool
	recorded  []string

	sendResult *outbound.SendResult
	sent       []string

	published []events.Event
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		leads:     map[uuid.UUID]*repository.Lead{},
		processed: map[string]bool{},
	}
}

func (w *fakeWorld) addLead(status domain.Status) *repository.Lead {
	lead := &repository.Lead{ID: uuid.New(), Phone: "+447700900789", Status: status}
	w.leads[lead.ID] = lead
	return lead
}

func (w *fakeWorld) ListQualifyingReminderDue(_ context.Context, _ time.Time, _ int) ([]repository.Lead, error) {
	return w.qualifyingDue, nil
}

func (w *fakeWorld) ListDepositReminderDue(_ context.Context, _ time.Time, _ int) ([]repository.Lead, error) {
	return w.depositDue, nil
}

func (w *fakeWorld) ListAbandonDue(_ context.Context, _ time.Time, _ int) ([]repository.Lead, error) {
	return w.abandonDue, nil
}

func (w *fakeWorld) ListStaleDue(_ context.Context, _ time.Time, _ int) ([]repository.Lead, error) {
	return w.staleDue, nil
}

func (w *fakeWorld) MarkQualifyingReminderSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	lead := w.leads[id]
	if lead.QualifyingReminderSentAt != nil {
		return false, nil
	}
	lead.QualifyingReminderSentAt = &at
	return true, nil
}

func (w *fakeWorld) MarkDepositReminderSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	lead := w.leads[id]
	if lead.DepositReminderSentAt != nil {
		return false, nil
	}
	lead.DepositReminderSentAt = &at
	return true, nil
}

func (w *fakeWorld) Transition(_ context.Context, leadID uuid.UUID, from, to domain.Status, reason string) (repository.Lead, error) {
	lead := w.leads[leadID]
	if lead.Status != from {
		return repository.Lead{}, &state.ConflictError{LeadID: leadID, Expected: from, Actual: lead.Status}
	}
	lead.Status = to
	return *lead, nil
}

func (w *fakeWorld) CheckProcessed(_ context.Context, eventID string) (bool, error) {
	return w.processed[eventID], nil
}

func (w *fakeWorld) RecordProcessed(_ context.Context, eventID, eventType string, leadID *uuid.UUID) error {
	w.processed[eventID] = true
	w.recorded = append(w.recorded, eventID)
	return nil
}

func (w *fakeWorld) Send(_ context.Context, lead repository.Lead, text, templateKey string, params []string) outbound.SendResult {
	w.sent = append(w.sent, templateKey)
	if w.sendResult != nil {
		return *w.sendResult
	}
	return outbound.SendResult{Status: outbound.StatusSent}
}

func (w *fakeWorld) Publish(_ context.Context, event events.Event) {
	w.published = append(w.published, event)
}

func (w *fakeWorld) PublishSync(_ context.Context, event events.Event) error {
	w.published = append(w.published, event)
	return nil
}

func (w *fakeWorld) Subscribe(eventName string, handler events.Handler) {}

func newTestService(w *fakeWorld) *Service {
	return NewService(w, w, w, w, w, fakeCfg{}, logger.New("development"))
}

func TestSweepSendsQualifyingReminderOnce(t *testing.T) {
	w := newFakeWorld()
	lead := w.addLead(domain.StatusQualifying)
	w.qualifyingDue = []repository.Lead{*lead}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if lead.QualifyingReminderSentAt == nil {
		t.Fatal("reminder marker not stamped")
	}
	if len(w.recorded) != 1 {
		t.Fatalf("recorded %d ledger rows, want 1", len(w.recorded))
	}
	if len(w.published) != 1 {
		t.Fatalf("published %d events, want 1", len(w.published))
	}

	// A second sweep over the same day's candidate set is a no-op.
	w.qualifyingDue = []repository.Lead{*lead}
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if len(w.sent) != 1 {
		t.Fatalf("sent %d messages across two sweeps, want 1", len(w.sent))
	}
}

func TestSweepDegradedSendLeavesLeadRetryable(t *testing.T) {
	w := newFakeWorld()
	lead := w.addLead(domain.StatusQualifying)
	w.qualifyingDue = []repository.Lead{*lead}
	w.sendResult = &outbound.SendResult{Status: outbound.StatusWindowClosedTemplateNotConfigured}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if lead.QualifyingReminderSentAt != nil {
		t.Fatal("marker stamped for a message that never went out")
	}
	if len(w.recorded) != 0 {
		t.Fatal("ledger row written for a message that never went out")
	}

	// Once sending works again, the same lead gets the reminder.
	w.sendResult = nil
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("recovery Sweep: %v", err)
	}
	if lead.QualifyingReminderSentAt == nil {
		t.Fatal("lead was not retried after the degraded send")
	}
}

func TestSweepSendFailureLeavesLeadRetryable(t *testing.T) {
	w := newFakeWorld()
	lead := w.addLead(domain.StatusAwaitingDeposit)
	w.depositDue = []repository.Lead{*lead}
	w.sendResult = &outbound.SendResult{Status: outbound.StatusSendFailed, Err: errors.New("provider 500")}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if lead.DepositReminderSentAt != nil {
		t.Fatal("marker stamped after a failed send")
	}
	if len(w.recorded) != 0 {
		t.Fatal("ledger row written after a failed send")
	}
}

func TestSweepDepositReminder(t *testing.T) {
	w := newFakeWorld()
	lead := w.addLead(domain.StatusAwaitingDeposit)
	w.depositDue = []repository.Lead{*lead}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if lead.DepositReminderSentAt == nil {
		t.Fatal("deposit marker not stamped")
	}
	if len(w.sent) != 1 || w.sent[0] != tmplDepositNudge {
		t.Fatalf("sent = %v, want deposit nudge", w.sent)
	}
}

func TestSweepMarkerRaceSkipsLedger(t *testing.T) {
	// Another sweep instance stamped the marker between this instance's list
	// and mark. No ledger row and no event should be written here.
	w := newFakeWorld()
	lead := w.addLead(domain.StatusQualifying)
	now := time.Now()
	lead.QualifyingReminderSentAt = &now
	w.qualifyingDue = []repository.Lead{{ID: lead.ID, Phone: lead.Phone, Status: lead.Status}}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(w.recorded) != 0 {
		t.Fatal("losing sweep instance wrote a ledger row")
	}
	if len(w.published) != 0 {
		t.Fatal("losing sweep instance published an event")
	}
}

func TestSweepExpiresSilentLeads(t *testing.T) {
	w := newFakeWorld()
	abandoned := w.addLead(domain.StatusQualifying)
	stale := w.addLead(domain.StatusAwaitingDeposit)
	w.abandonDue = []repository.Lead{*abandoned}
	w.staleDue = []repository.Lead{*stale}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if abandoned.Status != domain.StatusAbandoned {
		t.Fatalf("status = %s, want ABANDONED", abandoned.Status)
	}
	if stale.Status != domain.StatusStale {
		t.Fatalf("status = %s, want STALE", stale.Status)
	}
}

func TestSweepExpiryLosesRaceToClientReply(t *testing.T) {
	// The client replied between the list and the transition; the lead moved
	// on and the expiry must be dropped, not forced.
	w := newFakeWorld()
	lead := w.addLead(domain.StatusPendingApproval)
	w.abandonDue = []repository.Lead{{ID: lead.ID, Phone: lead.Phone, Status: domain.StatusQualifying}}

	s := newTestService(w)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if lead.Status != domain.StatusPendingApproval {
		t.Fatalf("status = %s, expiry overrode a concurrent reply", lead.Status)
	}
}
