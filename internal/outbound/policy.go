// Package outbound implements the window/template fallback policy for
// customer-facing sends. Free-form messages are only permitted inside the
// provider's reply window; outside it, a pre-approved template must be used,
// and a missing template degrades to a structured non-sent status.
package outbound

import (
	"context"
	"time"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// SendStatus is the outcome of one outbound send attempt. Callers must treat
// any value other than StatusSent as a non-delivery; conflating a degraded
// status with success is the defect this type exists to prevent.
type SendStatus string

const (
	StatusSent                              SendStatus = "sent"
	StatusSendFailed                        SendStatus = "send_failed"
	StatusWindowClosedTemplateNotConfigured SendStatus = "window_closed_template_not_configured"
	StatusWindowClosedSendFailed            SendStatus = "window_closed_send_failed"
	StatusOptedOut                          SendStatus = "opted_out"
)

// SendResult carries the outcome and, for failures, the underlying error.
type SendResult struct {
	Status SendStatus
	Err    error
}

// Sent reports whether the message was actually handed to the provider.
func (r SendResult) Sent() bool {
	return r.Status == StatusSent
}

// Sender is the messaging collaborator contract. Satisfied by whatsapp.Client.
type Sender interface {
	SendMessage(ctx context.Context, phone, message string) error
	SendTemplate(ctx context.Context, phone, templateName string, params []string) error
}

// Policy decides per outbound message whether a free-form send is permitted
// or a template fallback is required.
type Policy struct {
	sender   Sender
	registry *Registry
	window   time.Duration
	now      func() time.Time
	log      *logger.Logger
}

func NewPolicy(sender Sender, registry *Registry, window time.Duration, log *logger.Logger) *Policy {
	return &Policy{
		sender:   sender,
		registry: registry,
		window:   window,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the policy clock. Test hook.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	p.now = now
	return p
}

// Send delivers a message to the lead, degrading per the window policy.
//
// Opt-out is the highest-priority gate and short-circuits everything else.
// Inside the free-form window the text is sent as-is. Outside it, templateKey
// is resolved against the registry; an unresolvable key yields
// StatusWindowClosedTemplateNotConfigured without raising.
func (p *Policy) Send(ctx context.Context, lead repository.Lead, text, templateKey string, params []string) SendResult {
	if lead.Status == domain.StatusOptOut {
		return SendResult{Status: StatusOptedOut}
	}

	if p.windowOpen(lead) {
		if err := p.sender.SendMessage(ctx, lead.Phone, text); err != nil {
			p.log.Error("free-form send failed", "lead_id", lead.ID, "error", err)
			return SendResult{Status: StatusSendFailed, Err: err}
		}
		return SendResult{Status: StatusSent}
	}

	if templateKey == "" {
		p.log.SendDegraded(lead.ID.String(), string(StatusWindowClosedTemplateNotConfigured), templateKey)
		return SendResult{Status: StatusWindowClosedTemplateNotConfigured}
	}

	tmpl, ok := p.registry.Resolve(templateKey)
	if !ok {
		p.log.SendDegraded(lead.ID.String(), string(StatusWindowClosedTemplateNotConfigured), templateKey)
		return SendResult{Status: StatusWindowClosedTemplateNotConfigured}
	}

	if err := p.sender.SendTemplate(ctx, lead.Phone, tmpl.Name, params); err != nil {
		p.log.Error("template send failed", "lead_id", lead.ID, "template", tmpl.Name, "error", err)
		return SendResult{Status: StatusWindowClosedSendFailed, Err: err}
	}
	return SendResult{Status: StatusSent}
}

// windowOpen reports whether a free-form reply is still permitted. A lead
// that has never messaged us has no window at all.
func (p *Policy) windowOpen(lead repository.Lead) bool {
	if lead.LastClientMessageAt == nil {
		return false
	}
	expiresAt := lead.LastClientMessageAt.Add(p.window)
	return p.now().Before(expiresAt)
}
