// Package config defines the runtime configuration of the academy service.
package config

import (
	"time"

	"github.com/Proton-105/sawti-academy/pkg/redis"
)

// Config holds runtime configuration loaded from configs/<APP_ENV>.yaml and
// the environment.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     redis.Config    `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Operator  OperatorConfig  `mapstructure:"operator" validate:"required"`
	Bot       BotConfig       `mapstructure:"bot"`
	Tutor     TutorConfig     `mapstructure:"tutor"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type AppConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Version string `mapstructure:"version"`
	// Lang selects the message catalog ("ar" or "en").
	Lang string `mapstructure:"lang" validate:"omitempty,oneof=ar en"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// StorageConfig selects the persistence adapter for the session slots.
type StorageConfig struct {
	Driver    string `mapstructure:"driver" validate:"required,oneof=memory redis postgres"`
	Namespace string `mapstructure:"namespace"`
}

type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type OperatorConfig struct {
	Phone             string `mapstructure:"phone" validate:"required"`
	Name              string `mapstructure:"name"`
	AdminPhone        string `mapstructure:"admin_phone"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	TrialCode         string `mapstructure:"trial_code" validate:"required"`
}

// BotConfig configures the Telegram operator console. An empty token
// disables the bot and the Telegram notifier.
type BotConfig struct {
	Token          string        `mapstructure:"token"`
	OperatorChatID int64         `mapstructure:"operator_chat_id" validate:"required_with=Token"`
	Mode           string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	WebhookURL     string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	WebhookListen  string        `mapstructure:"webhook_listen"`
	Timeout        time.Duration `mapstructure:"timeout"`
	StateTTL       time.Duration `mapstructure:"state_ttl"`
}

// TutorConfig configures the Gemini-backed study assistant. An empty key
// leaves the assistant answering with its fallback reply.
type TutorConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	ChatModel string        `mapstructure:"chat_model"`
	LiveModel string        `mapstructure:"live_model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RateLimitRule is a request budget per window, e.g. {limit: 5, window: "1m"}.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Whitelist lists client keys (user ids or remote addresses) that bypass limits.
	Whitelist []string      `mapstructure:"whitelist"`
	Global    RateLimitRule `mapstructure:"global"`
	Routes    RouteLimits   `mapstructure:"routes"`
}

type RouteLimits struct {
	Login    RateLimitRule `mapstructure:"login"`
	Submit   RateLimitRule `mapstructure:"submit"`
	Chat     RateLimitRule `mapstructure:"chat"`
	Operator RateLimitRule `mapstructure:"operator"`
}

// JobsConfig drives the asynq scheduler and worker.
type JobsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ReminderCron   string        `mapstructure:"reminder_cron" validate:"required_if=Enabled true"`
	ReminderWithin time.Duration `mapstructure:"reminder_within"`
	Concurrency    int           `mapstructure:"concurrency"`
}
