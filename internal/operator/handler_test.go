package operator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/domain"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/validator"
)

func testHandler(leads *fakeLeads) *Handler {
	s := NewService(&fakeExecutor{}, leads, &fakeReplies{}, "https://studio.test", logger.New("development"))
	return NewHandler(s, validator.New())
}

func TestHandleGetLeadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/leads/:leadId", testHandler(&fakeLeads{}).HandleGetLead)

	req := httptest.NewRequest(http.MethodGet, "/leads/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["error"] != "lead not found" {
		t.Fatalf("error = %q, want %q", body["error"], "lead not found")
	}
}

func TestHandleGetLeadFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lead := &repository.Lead{ID: uuid.New(), Status: domain.StatusPendingApproval}
	engine := gin.New()
	engine.GET("/leads/:leadId", testHandler(&fakeLeads{lead: lead}).HandleGetLead)

	req := httptest.NewRequest(http.MethodGet, "/leads/"+lead.ID.String(), nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleAttachSessionNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.PUT("/leads/:leadId/deposit-session", testHandler(&fakeLeads{}).HandleAttachSession)

	body := strings.NewReader(`{"sessionRef":"cs_123"}`)
	req := httptest.NewRequest(http.MethodPut, "/leads/"+uuid.NewString()+"/deposit-session", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
