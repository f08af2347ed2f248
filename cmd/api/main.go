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

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/actiontoken"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/conversation"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	apphttp "github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/http/router"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/repository"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/leads/state"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/ledger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/notify"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/operator"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/outbound"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/payments"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/scheduler"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/webhook"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/whatsapp"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/db"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/validator"
)

const maxTimeWindows = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

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

	script, err := conversation.LoadScript(cfg.GetScriptFile())
	if err != nil {
		log.Error("failed to load conversation script", "error", err)
		panic("failed to load conversation script: " + err.Error())
	}
	orchestrator := conversation.NewOrchestrator(leadRepo, machine, eventLedger, policy, script, maxTimeWindows, log)

	paymentsSvc := payments.NewService(leadRepo, machine, eventLedger, policy, eventBus, log)

	tokenRepo := actiontoken.NewRepository(pool)
	executor := actiontoken.NewExecutor(tokenRepo, leadRepo, eventBus, cfg.GetActionTokenTTL(), log)
	operatorSvc := operator.NewService(executor, leadRepo, policy, cfg.GetActionLinkBaseURL(), log)

	if cfg.GetAlertsEnabled() {
		alerter := notify.NewAlerter(notify.NewSMTPSender(cfg), executor, cfg, cfg, log)
		alerter.Register(eventBus)
		log.Info("operator alerts enabled", "to", cfg.GetOperatorEmail())
	} else {
		log.Warn("operator alerts disabled; decisions require the admin API")
	}

	modules := []apphttp.Module{
		webhook.NewModule(orchestrator, paymentsSvc, val, log),
		operator.NewModule(operatorSvc, val),
	}

	if cfg.GetRedisURL() != "" {
		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task client", "error", err)
			panic("failed to initialize task client: " + err.Error())
		}
		defer schedClient.Close()
		modules = append(modules, scheduler.NewModule(schedClient, log))
	} else {
		log.Warn("redis not configured; manual sweep trigger unavailable")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules:  modules,
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
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
