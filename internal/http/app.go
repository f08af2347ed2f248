package http

import (
	"context"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/internal/events"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
)

// RouterConfig combines the config interfaces the router needs.
type RouterConfig interface {
	config.HTTPConfig
	config.WebhookConfig
	config.OperatorConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies. It is populated
// by main.go (the composition root) and passed to the router.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
