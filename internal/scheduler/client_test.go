package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedCfg struct {
	url   string
	queue string
}

func (c testSchedCfg) GetRedisURL() string                     { return c.url }
func (c testSchedCfg) GetRedisTLSInsecure() bool               { return false }
func (c testSchedCfg) GetAsynqQueueName() string               { return c.queue }
func (c testSchedCfg) GetAsynqConcurrency() int                { return 1 }
func (c testSchedCfg) GetReminderSweepInterval() time.Duration { return time.Minute }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedCfg{}); err == nil {
		t.Fatal("expected error for empty redis url")
	}
}

func TestClientEnqueueReminderSweep(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewClient(testSchedCfg{url: "redis://" + mr.Addr(), queue: "leadbot"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if err := c.EnqueueReminderSweep(context.Background()); err != nil {
		t.Fatalf("EnqueueReminderSweep: %v", err)
	}

	insp := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer insp.Close()

	pending, err := insp.ListPendingTasks("leadbot")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskReminderSweep {
		t.Fatalf("task type = %s, want %s", pending[0].Type, TaskReminderSweep)
	}
}

func TestClientScheduleLedgerPrune(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewClient(testSchedCfg{url: "redis://" + mr.Addr(), queue: "leadbot"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if err := c.ScheduleLedgerPrune(context.Background(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ScheduleLedgerPrune: %v", err)
	}

	insp := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer insp.Close()

	scheduled, err := insp.ListScheduledTasks("leadbot")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(scheduled))
	}
	if scheduled[0].Type != TaskLedgerPrune {
		t.Fatalf("task type = %s, want %s", scheduled[0].Type, TaskLedgerPrune)
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6380/2", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "localhost:6380" {
		t.Fatalf("addr = %s", opt.Addr)
	}
	if opt.Password != "secret" {
		t.Fatalf("password = %s", opt.Password)
	}
	if opt.DB != 2 {
		t.Fatalf("db = %d", opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Fatal("unexpected TLS config for redis scheme")
	}
}
