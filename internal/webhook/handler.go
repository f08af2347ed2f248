// Package webhook receives the provider callbacks: inbound WhatsApp
// messages and payment checkout outcomes. Handlers validate and normalize
// the payload, then hand it to the owning service; a non-2xx response asks
// the provider to redeliver.
package webhook

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/conversation"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http/response"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/payments"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/phone"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/sanitize"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/validator"
)

// InboundMessageRequest is the messaging provider's delivery payload.
type InboundMessageRequest struct {
	EventID   string `json:"eventId" validate:"required,min=1,max=200"`
	From      string `json:"from" validate:"required,min=5,max=32"`
	Name      string `json:"name" validate:"max=120"`
	Text      string `json:"text" validate:"required,min=1,max=4096"`
	Timestamp int64  `json:"timestamp" validate:"omitempty,gt=0"`
}

// PaymentEventRequest is the payment provider's callback payload.
type PaymentEventRequest struct {
	EventID     string `json:"eventId" validate:"required,min=1,max=200"`
	SessionRef  string `json:"sessionRef" validate:"required,min=1,max=200"`
	Status      string `json:"status" validate:"required,oneof=completed expired"`
	AmountCents int64  `json:"amountCents" validate:"omitempty,gte=0"`
}

type Handler struct {
	orchestrator *conversation.Orchestrator
	payments     *payments.Service
	val          *validator.Validator
	log          *logger.Logger
}

func NewHandler(orch *conversation.Orchestrator, pay *payments.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		payments:     pay,
		val:          val,
		log:          log,
	}
}

// HandleInboundMessage processes one messaging delivery. Transient store
// errors are retried in-process before asking for a redelivery.
func (h *Handler) HandleInboundMessage(c *gin.Context) {
	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	normalized := phone.NormalizeE164(req.From)
	if normalized == "" {
		// Unroutable sender; acknowledge so the provider stops retrying.
		h.log.Warn("inbound message with unusable phone", "event_id", req.EventID)
		response.OK(c, gin.H{"status": "ignored"})
		return
	}

	receivedAt := time.Now()
	if req.Timestamp > 0 {
		receivedAt = time.Unix(req.Timestamp, 0)
	}

	text := sanitize.Text(req.Text)
	if text == "" {
		// Nothing actionable after cleanup; acknowledge without processing.
		h.log.Warn("inbound message with empty text", "event_id", req.EventID)
		response.OK(c, gin.H{"status": "ignored"})
		return
	}

	msg := conversation.InboundMessage{
		EventID:    req.EventID,
		Phone:      normalized,
		Name:       sanitize.Name(req.Name, 120),
		Text:       text,
		ReceivedAt: receivedAt,
	}

	err := state.Retry(c.Request.Context(), func() error {
		return h.orchestrator.HandleInbound(c.Request.Context(), msg)
	})
	if err != nil {
		h.log.Error("inbound message not settled", "event_id", req.EventID, "error", err)
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{"status": "accepted"})
}

// HandlePaymentEvent processes one payment provider callback.
func (h *Handler) HandlePaymentEvent(c *gin.Context) {
	var req PaymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ev := payments.PaymentEvent{
		EventID:     req.EventID,
		SessionRef:  req.SessionRef,
		Outcome:     req.Status,
		AmountCents: req.AmountCents,
	}

	err := state.Retry(c.Request.Context(), func() error {
		return h.payments.HandleEvent(c.Request.Context(), ev)
	})
	if err != nil {
		h.log.Error("payment event not settled", "event_id", req.EventID, "error", err)
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{"status": "accepted"})
}
