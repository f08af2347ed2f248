// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// WhatsAppConfig provides settings for the outbound WhatsApp client.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetWhatsAppSendTimeout() time.Duration
}

// WindowConfig provides settings for the outbound free-form window policy.
type WindowConfig interface {
	GetFreeFormWindow() time.Duration
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReminderSweepInterval() time.Duration
}

// ReminderConfig provides settings for reminder evaluation.
type ReminderConfig interface {
	GetQualifyingReminderAfter() time.Duration
	GetDepositReminderAfter() time.Duration
	GetAbandonAfter() time.Duration
	GetStaleAfter() time.Duration
	GetLedgerRetention() time.Duration
}

// OperatorConfig provides settings for the operator action surface.
type OperatorConfig interface {
	GetOperatorJWTSecret() string
	GetActionTokenTTL() time.Duration
	GetActionLinkBaseURL() string
}

// AlertConfig provides settings for operator e-mail alerts.
type AlertConfig interface {
	GetAlertsEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromName() string
	GetAlertFromAddress() string
	GetOperatorEmail() string
}

// WebhookConfig provides settings for inbound webhook authentication.
type WebhookConfig interface {
	GetWebhookSecret() string
	GetWebhookRateLimit() float64
	GetWebhookRateBurst() int
}

// ConversationConfig provides settings for the conversation orchestrator.
type ConversationConfig interface {
	GetScriptFile() string
	GetTemplatesFile() string
}

// =============================================================================
// Config Struct
// =============================================================================

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string

	CORSAllowAll bool
	CORSOrigins  []string

	WhatsAppURL         string
	WhatsAppKey         string
	WhatsAppDeviceID    string
	WhatsAppSendTimeout time.Duration

	FreeFormWindow time.Duration

	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	ReminderSweepInterval time.Duration

	QualifyingReminderAfter time.Duration
	DepositReminderAfter    time.Duration
	AbandonAfter            time.Duration
	StaleAfter              time.Duration
	LedgerRetention         time.Duration

	OperatorJWTSecret string
	ActionTokenTTL    time.Duration
	ActionLinkBaseURL string

	AlertsEnabled    bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	AlertFromName    string
	AlertFromAddress string
	OperatorEmail    string

	WebhookSecret    string
	WebhookRateLimit float64
	WebhookRateBurst int

	ScriptFile    string
	TemplatesFile string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	alertsEnabled := strings.EqualFold(getEnv("ALERTS_ENABLED", "false"), "true")

	cfg := &Config{
		Env:          getEnv("APP_ENV", "development"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		WhatsAppURL:         getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:         getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppDeviceID:    getEnv("WHATSAPP_DEVICE_ID", ""),
		WhatsAppSendTimeout: mustDuration(getEnv("WHATSAPP_SEND_TIMEOUT", "10s")),

		FreeFormWindow: mustDuration(getEnv("FREEFORM_WINDOW", "24h")),

		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "booking"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ReminderSweepInterval: mustDuration(getEnv("REMINDER_SWEEP_INTERVAL", "15m")),

		QualifyingReminderAfter: mustDuration(getEnv("QUALIFYING_REMINDER_AFTER", "20h")),
		DepositReminderAfter:    mustDuration(getEnv("DEPOSIT_REMINDER_AFTER", "20h")),
		AbandonAfter:            mustDuration(getEnv("ABANDON_AFTER", "72h")),
		StaleAfter:              mustDuration(getEnv("STALE_AFTER", "168h")),
		LedgerRetention:         mustDuration(getEnv("LEDGER_RETENTION", "2160h")),

		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),
		ActionTokenTTL:    mustDuration(getEnv("ACTION_TOKEN_TTL", "72h")),
		ActionLinkBaseURL: getEnv("ACTION_LINK_BASE_URL", "http://localhost:8080"),

		AlertsEnabled:    alertsEnabled,
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		AlertFromName:    getEnv("ALERT_FROM_NAME", "Booking Bot"),
		AlertFromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
		OperatorEmail:    getEnv("OPERATOR_EMAIL", ""),

		WebhookSecret:    getEnv("WEBHOOK_SHARED_SECRET", ""),
		WebhookRateLimit: mustFloat(getEnv("WEBHOOK_RATE_LIMIT", "20")),
		WebhookRateBurst: mustInt(getEnv("WEBHOOK_RATE_BURST", "40")),

		ScriptFile:    getEnv("SCRIPT_FILE", "config/script.yaml"),
		TemplatesFile: getEnv("TEMPLATES_FILE", "config/templates.yaml"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OperatorJWTSecret == "" {
		return nil, fmt.Errorf("OPERATOR_JWT_SECRET is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SHARED_SECRET is required")
	}
	if cfg.FreeFormWindow <= 0 {
		return nil, fmt.Errorf("FREEFORM_WINDOW must be a positive duration")
	}
	if alertsEnabled && (cfg.SMTPHost == "" || cfg.AlertFromAddress == "" || cfg.OperatorEmail == "") {
		return nil, fmt.Errorf("SMTP_HOST, ALERT_FROM_ADDRESS and OPERATOR_EMAIL are required when ALERTS_ENABLED is true")
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetWhatsAppURL() string                { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string                { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string           { return c.WhatsAppDeviceID }
func (c *Config) GetWhatsAppSendTimeout() time.Duration { return c.WhatsAppSendTimeout }

func (c *Config) GetFreeFormWindow() time.Duration { return c.FreeFormWindow }

func (c *Config) GetRedisURL() string                       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool                 { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string                 { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                  { return c.AsynqConcurrency }
func (c *Config) GetReminderSweepInterval() time.Duration   { return c.ReminderSweepInterval }

func (c *Config) GetQualifyingReminderAfter() time.Duration { return c.QualifyingReminderAfter }
func (c *Config) GetDepositReminderAfter() time.Duration    { return c.DepositReminderAfter }
func (c *Config) GetAbandonAfter() time.Duration            { return c.AbandonAfter }
func (c *Config) GetStaleAfter() time.Duration              { return c.StaleAfter }
func (c *Config) GetLedgerRetention() time.Duration         { return c.LedgerRetention }

func (c *Config) GetOperatorJWTSecret() string       { return c.OperatorJWTSecret }
func (c *Config) GetActionTokenTTL() time.Duration   { return c.ActionTokenTTL }
func (c *Config) GetActionLinkBaseURL() string       { return c.ActionLinkBaseURL }

func (c *Config) GetAlertsEnabled() bool     { return c.AlertsEnabled }
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetAlertFromName() string   { return c.AlertFromName }
func (c *Config) GetAlertFromAddress() string { return c.AlertFromAddress }

func (c *Config) GetOperatorEmail() string   { return c.OperatorEmail }

func (c *Config) GetWebhookSecret() string      { return c.WebhookSecret }
func (c *Config) GetWebhookRateLimit() float64  { return c.WebhookRateLimit }
func (c *Config) GetWebhookRateBurst() int      { return c.WebhookRateBurst }

func (c *Config) GetScriptFile() string    { return c.ScriptFile }
func (c *Config) GetTemplatesFile() string { return c.TemplatesFile }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
