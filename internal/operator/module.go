package operator

import (
	apphttp "github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/validator"
)

// Module is the operator bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(service *Service, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(service, val)}
}

func (m *Module) Name() string {
	return "operator"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Token links are their own credential; execution stays outside the
	// JWT-guarded group.
	ctx.V1.POST("/actions/execute", m.handler.HandleExecuteAction)

	leads := ctx.Admin.Group("/leads")
	leads.GET("", m.handler.HandleListLeads)
	leads.GET("/:leadId", m.handler.HandleGetLead)
	leads.POST("/:leadId/actions", m.handler.HandleIssueAction)
	leads.PUT("/:leadId/deposit-session", m.handler.HandleAttachSession)
}

var _ apphttp.Module = (*Module)(nil)
