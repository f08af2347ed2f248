package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/ledger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/reminders"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/scheduler"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/whatsapp"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/db"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	leadRepo := repository.New(pool)
	machine := state.New(leadRepo, eventBus, log)
	eventLedger := ledger.New(pool)

	waClient := whatsapp.NewClient(cfg, log)
	registry, err := outbound.LoadRegistry(cfg.GetTemplatesFile())
	if err != nil {
		log.Error("failed to load template registry", "error", err)
		panic("failed to load template registry: " + err.Error())
	}
	policy := outbound.NewPolicy(waClient, registry, cfg.GetFreeFormWindow(), log)

	reminderSvc := reminders.NewService(leadRepo, machine, eventLedger, policy, eventBus, cfg, log)

	worker, err := scheduler.NewWorker(cfg, cfg, reminderSvc, eventLedger, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	log.Info("scheduler worker running", "queue", cfg.GetAsynqQueueName())
	if err := worker.Run(ctx); err != nil {
		log.Error("scheduler worker stopped", "error", err)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
