package webhook

import (
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/conversation"
	apphttp "github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/payments"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/validator"
)

// Module is the provider-callback bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(orch *conversation.Orchestrator, pay *payments.Service, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(orch, pay, val, log),
	}
}

func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the callback routes. The Webhooks group already
// carries shared-secret auth and rate limiting.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/messages", m.handler.HandleInboundMessage)
	ctx.Webhooks.POST("/payments", m.handler.HandlePaymentEvent)
}

var _ apphttp.Module = (*Module)(nil)
