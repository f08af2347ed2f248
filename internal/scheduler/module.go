package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apphttp "github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http/response"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// Module exposes the admin trigger for an immediate reminder sweep,
// implementing http.Module. The periodic schedule keeps running in the
// worker; this just jumps the queue.
type Module struct {
	client *Client
	log    *logger.Logger
}

func NewModule(client *Client, log *logger.Logger) *Module {
	return &Module{client: client, log: log}
}

func (m *Module) Name() string {
	return "scheduler"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.POST("/reminders/sweep", m.handleTriggerSweep)
}

func (m *Module) handleTriggerSweep(c *gin.Context) {
	if err := m.client.EnqueueReminderSweep(c.Request.Context()); err != nil {
		m.log.Error("reminder sweep enqueue failed", "error", err)
		response.FromError(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "enqueued"})
}

var _ apphttp.Module = (*Module)(nil)
