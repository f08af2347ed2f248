// Package notify sends operator e-mail alerts when a lead needs a human:
// artist review, manual follow-up, or a booking confirmation. Alerts carry
// one-shot action links so the artist can decide straight from the inbox.
package notify

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/actiontoken"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"

	"github.com/google/uuid"
)

// Mailer delivers one alert e-mail. Satisfied by SMTPSender.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LinkIssuer mints one-shot action tokens for e-mail links.
// Satisfied by actiontoken.Executor.
type LinkIssuer interface {
	Issue(ctx context.Context, leadID uuid.UUID, action actiontoken.Action, requiredStatus domain.Status) (string, actiontoken.Record, error)
}

// Alerter subscribes to lead status changes and notifies the operator.
type Alerter struct {
	mailer   Mailer
	issuer   LinkIssuer
	to       string
	linkBase string
	log      *logger.Logger
}

func NewAlerter(mailer Mailer, issuer LinkIssuer, alertCfg config.AlertConfig, opCfg config.OperatorConfig, log *logger.Logger) *Alerter {
	return &Alerter{
		mailer:   mailer,
		issuer:   issuer,
		to:       alertCfg.GetOperatorEmail(),
		linkBase: strings.TrimRight(opCfg.GetActionLinkBaseURL(), "/"),
		log:      log,
	}
}

// Register subscribes the alerter to the event bus.
func (a *Alerter) Register(bus events.Bus) {
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(a.onStatusChanged))
	bus.Subscribe(events.LeadStatusReset{}.EventName(), events.HandlerFunc(a.onStatusReset))
}

// alertActions lists the operator choices offered per alerting status.
var alertActions = map[domain.Status][]actiontoken.Action{
	domain.StatusPendingApproval: {
		actiontoken.ActionApprove,
		actiontoken.ActionReject,
		actiontoken.ActionWaitlist,
		actiontoken.ActionNeedsInfo,
		actiontoken.ActionOfferTour,
	},
	domain.StatusNeedsArtistReply: {actiontoken.ActionResume},
	domain.StatusNeedsFollowUp:    {actiontoken.ActionResume},
	domain.StatusBookingPending:   {actiontoken.ActionConfirmBooking, actiontoken.ActionReworkTimes},
}

func (a *Alerter) onStatusChanged(ctx context.Context, event events.Event) error {
	changed, ok := event.(events.LeadStatusChanged)
	if !ok {
		return nil
	}
	actions, alerting := alertActions[changed.NewStatus]
	if !alerting {
		return nil
	}

	var lines []string
	lines = append(lines,
		fmt.Sprintf("Lead %s (%s) is now %s.", changed.LeadID, changed.Phone, changed.NewStatus),
		"",
	)
	for _, action := range actions {
		token, _, err := a.issuer.Issue(ctx, changed.LeadID, action, changed.NewStatus)
		if err != nil {
			a.log.WithLead(changed.LeadID.String()).Error("action link not issued", "action", string(action), "error", err)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s/actions/%s?token=%s", action, a.linkBase, action, token))
	}

	subject := fmt.Sprintf("Lead needs attention: %s", changed.NewStatus)
	if err := a.mailer.Send(ctx, a.to, subject, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("send alert for lead %s: %w", changed.LeadID, err)
	}
	return nil
}

func (a *Alerter) onStatusReset(ctx context.Context, event events.Event) error {
	reset, ok := event.(events.LeadStatusReset)
	if !ok {
		return nil
	}
	subject := "Lead status reset"
	body := fmt.Sprintf("Lead %s carried unrecognized status %q and was reset to intake.", reset.LeadID, reset.PriorStatus)
	if err := a.mailer.Send(ctx, a.to, subject, body); err != nil {
		return fmt.Errorf("send reset alert for lead %s: %w", reset.LeadID, err)
	}
	return nil
}

// SMTPSender delivers alerts over the studio's SMTP server.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(cfg config.AlertConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetAlertFromName(),
		fromEmail: cfg.GetAlertFromAddress(),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
