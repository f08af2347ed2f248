package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/actiontoken"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

type fakeMailer struct {
	subjects []string
	bodies   []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	return nil
}

type fakeIssuer struct{ issued []actiontoken.Action }

func (i *fakeIssuer) Issue(_ context.Context, leadID uuid.UUID, action actiontoken.Action, _ domain.Status) (string, actiontoken.Record, error) {
	i.issued = append(i.issued, action)
	return "tok." + string(action), actiontoken.Record{}, nil
}

type alertCfg struct{}

func (alertCfg) GetAlertsEnabled() bool      { return true }
func (alertCfg) GetSMTPHost() string         { return "localhost" }
func (alertCfg) GetSMTPPort() int            { return 1025 }
func (alertCfg) GetSMTPUsername() string     { return "" }
func (alertCfg) GetSMTPPassword() string     { return "" }
func (alertCfg) GetAlertFromName() string    { return "Studio Bot" }
func (alertCfg) GetAlertFromAddress() string { return "bot@studio.test" }
func (alertCfg) GetOperatorEmail() string    { return "artist@studio.test" }

type opCfg struct{}

func (opCfg) GetOperatorJWTSecret() string     { return "secret" }
func (opCfg) GetActionTokenTTL() time.Duration { return 48 * time.Hour }
func (opCfg) GetActionLinkBaseURL() string     { return "https://studio.test/" }

func newTestAlerter() (*Alerter, *fakeMailer, *fakeIssuer) {
	mailer := &fakeMailer{}
	issuer := &fakeIssuer{}
	a := NewAlerter(mailer, issuer, alertCfg{}, opCfg{}, logger.New("development"))
	return a, mailer, issuer
}

func TestOnStatusChangedPendingApprovalAlerts(t *testing.T) {
	a, mailer, issuer := newTestAlerter()

	err := a.onStatusChanged(context.Background(), events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		Phone:     "+447700900123",
		OldStatus: domain.StatusQualifying,
		NewStatus: domain.StatusPendingApproval,
	})
	if err != nil {
		t.Fatalf("onStatusChanged: %v", err)
	}
	if len(mailer.subjects) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.subjects))
	}
	if len(issuer.issued) != 5 {
		t.Fatalf("issued %d action links, want 5", len(issuer.issued))
	}
	if !strings.Contains(mailer.bodies[0], "https://studio.test/actions/approve?token=tok.approve") {
		t.Fatalf("body missing approve link:\n%s", mailer.bodies[0])
	}
}

func TestOnStatusChangedIgnoresNonAlertingStatus(t *testing.T) {
	a, mailer, _ := newTestAlerter()

	err := a.onStatusChanged(context.Background(), events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		OldStatus: domain.StatusNew,
		NewStatus: domain.StatusQualifying,
	})
	if err != nil {
		t.Fatalf("onStatusChanged: %v", err)
	}
	if len(mailer.subjects) != 0 {
		t.Fatalf("sent %d mails for a non-alerting status", len(mailer.subjects))
	}
}

func TestOnStatusResetAlwaysAlerts(t *testing.T) {
	a, mailer, _ := newTestAlerter()

	err := a.onStatusReset(context.Background(), events.LeadStatusReset{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      uuid.New(),
		PriorStatus: "LEGACY_PHASE",
	})
	if err != nil {
		t.Fatalf("onStatusReset: %v", err)
	}
	if len(mailer.bodies) != 1 || !strings.Contains(mailer.bodies[0], "LEGACY_PHASE") {
		t.Fatalf("reset alert = %v", mailer.bodies)
	}
}
