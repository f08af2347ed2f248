// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// LeadStatusChanged is published after a status transition has committed.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID     `json:"leadId"`
	Phone     string        `json:"phone"`
	OldStatus domain.Status `json:"oldStatus"`
	NewStatus domain.Status `json:"newStatus"`
	Reason    string        `json:"reason"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadStatusReset is published when a lead carrying an unrecognized status
// was reset to the initial status outside the transition table. Loud on
// purpose.
type LeadStatusReset struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	PriorStatus string    `json:"priorStatus"`
}

func (e LeadStatusReset) EventName() string { return "leads.status.reset" }

// ReminderSent is published after a reminder was delivered and marked.
type ReminderSent struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Kind   string    `json:"kind"` // "qualifying" | "deposit"
}

func (e ReminderSent) EventName() string { return "leads.reminder.sent" }

// DepositPaid is published once a payment-provider completion event has been
// applied to the lead.
type DepositPaid struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	SessionRef  string    `json:"sessionRef"`
	AmountCents int64     `json:"amountCents,omitempty"`
}

func (e DepositPaid) EventName() string { return "payments.deposit.paid" }
