package scheduler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	apphttp "github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

func TestModuleTriggerSweepEnqueues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)

	c, err := NewClient(testSchedCfg{url: "redis://" + mr.Addr(), queue: "leadbot"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	engine := gin.New()
	m := NewModule(c, logger.New("development"))
	m.RegisterRoutes(&apphttp.RouterContext{
		Engine: engine,
		Admin:  engine.Group("/admin"),
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/reminders/sweep", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	insp := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer insp.Close()

	pending, err := insp.ListPendingTasks("leadbot")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 || pending[0].Type != TaskReminderSweep {
		t.Fatalf("pending = %+v, want one reminder sweep", pending)
	}
}
