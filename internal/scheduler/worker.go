package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/ledger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/reminders"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// Worker consumes scheduled tasks: reminder sweeps and ledger pruning.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	reminders *reminders.Service
	ledger    *ledger.Ledger
	retention time.Duration
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, remCfg config.ReminderConfig, rem *reminders.Service, ledg *ledger.Ledger, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	sweepEvery := cfg.GetReminderSweepInterval()
	if sweepEvery <= 0 {
		sweepEvery = 15 * time.Minute
	}

	periodic := asynq.NewScheduler(opt, nil)

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		reminders: rem,
		ledger:    ledg,
		retention: remCfg.GetLedgerRetention(),
		log:       log,
	}

	mux.HandleFunc(TaskReminderSweep, w.handleReminderSweep)
	mux.HandleFunc(TaskLedgerPrune, w.handleLedgerPrune)

	sweepTask, err := NewReminderSweepTask(ReminderSweepPayload{RequestedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	if _, err := periodic.Register(fmt.Sprintf("@every %s", sweepEvery), sweepTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register reminder sweep: %w", err)
	}

	pruneTask, err := NewLedgerPruneTask(LedgerPrunePayload{RequestedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	if _, err := periodic.Register("@every 24h", pruneTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register ledger prune: %w", err)
	}

	return w, nil
}

func (w *Worker) handleReminderSweep(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseReminderSweepPayload(task); err != nil {
		return err
	}
	return w.reminders.Sweep(ctx)
}

func (w *Worker) handleLedgerPrune(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseLedgerPrunePayload(task); err != nil {
		return err
	}
	if w.retention <= 0 {
		return nil
	}

	pruned, err := w.ledger.Prune(ctx, time.Now().Add(-w.retention))
	if err != nil {
		return err
	}
	w.log.Info("ledger pruned", "rows", pruned)
	return nil
}

// Run serves tasks until the context is cancelled, then returns the
// first error either loop exited with.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	var g errgroup.Group
	g.Go(func() error {
		return w.scheduler.Run()
	})
	g.Go(func() error {
		return w.server.Run(w.mux)
	})
	return g.Wait()
}
