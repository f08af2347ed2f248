package operator

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/actiontoken"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http/response"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/validator"
)

type ExecuteActionRequest struct {
	Token  string `json:"token" validate:"required,min=10,max=200"`
	Action string `json:"action" validate:"required,min=1,max=40"`
}

type IssueActionRequest struct {
	Action string `json:"action" validate:"required,min=1,max=40"`
}

type AttachSessionRequest struct {
	SessionRef string `json:"sessionRef" validate:"required,min=1,max=200"`
}

type tokenRejection struct {
	Error         string `json:"error"`
	Reason        string `json:"reason"`
	CurrentStatus string `json:"currentStatus,omitempty"`
}

type Handler struct {
	service *Service
	val     *validator.Validator
}

func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// HandleExecuteAction consumes a one-shot token. The token itself is the
// credential; this endpoint is public.
func (h *Handler) HandleExecuteAction(c *gin.Context) {
	var req ExecuteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	lead, err := h.service.ExecuteAction(c.Request.Context(), req.Token, actiontoken.Action(req.Action))
	if err != nil {
		writeTokenError(c, err)
		return
	}

	response.OK(c, gin.H{
		"leadId": lead.ID,
		"status": lead.Status,
	})
}

// writeTokenError maps a token rejection to its HTTP status. Every reason is
// terminal for that link, so the payload tells the operator what to do next.
func writeTokenError(c *gin.Context, err error) {
	var tokenErr *actiontoken.TokenError
	if !errors.As(err, &tokenErr) {
		response.FromError(c, err)
		return
	}

	status := http.StatusUnauthorized
	switch tokenErr.Reason {
	case actiontoken.ReasonNotFound:
		status = http.StatusNotFound
	case actiontoken.ReasonExpired, actiontoken.ReasonConsumed:
		status = http.StatusGone
	case actiontoken.ReasonStatusMismatch:
		status = http.StatusConflict
	}

	c.JSON(status, tokenRejection{
		Error:         "action token rejected",
		Reason:        string(tokenErr.Reason),
		CurrentStatus: string(tokenErr.CurrentStatus),
	})
}

func (h *Handler) HandleListLeads(c *gin.Context) {
	var status *domain.Status
	if raw := c.Query("status"); raw != "" {
		s := domain.Status(raw)
		if !domain.IsKnownStatus(s) {
			response.Error(c, http.StatusBadRequest, "unknown status filter", nil)
			return
		}
		status = &s
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	leads, err := h.service.ListLeads(c.Request.Context(), status, limit, offset)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"leads": leads})
}

func (h *Handler) HandleGetLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	lead, err := h.service.GetLead(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{
		"lead":       lead,
		"nextStates": domain.TransitionsFrom(lead.Status),
	})
}

func (h *Handler) HandleIssueAction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req IssueActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	link, err := h.service.IssueActionLink(c.Request.Context(), id, actiontoken.Action(req.Action))
	if err != nil {
		var tokenErr *actiontoken.TokenError
		if errors.As(err, &tokenErr) {
			response.Error(c, http.StatusUnprocessableEntity, "action not available for this lead", string(tokenErr.Reason))
			return
		}
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{"link": link})
}

func (h *Handler) HandleAttachSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req AttachSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if err := h.service.AttachDepositSession(c.Request.Context(), id, req.SessionRef); err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{"status": "attached"})
}
