package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	ResendAPIKey       string `env:"RESEND_API_KEY"       validate:"required_if=Env production,required_if=Env staging"`
	MailFrom           string `env:"MAIL_FROM"            validate:"required_if=Env production,required_if=Env staging"`
	UnsubscribeBaseURL string `env:"UNSUBSCRIBE_BASE_URL" envDefault:"http://localhost:8080/unsubscribe"`

	SendBatchSize  int `env:"SEND_BATCH_SIZE"   envDefault:"100" validate:"min=1,max=1000"`
	SendRatePerSec int `env:"SEND_RATE_PER_SEC" envDefault:"10"  validate:"min=1,max=1000"`

	RunIntervalSec  int `env:"RUN_INTERVAL_SEC"  envDefault:"30"  validate:"min=1,max=3600"`
	ClaimTTLSec     int `env:"CLAIM_TTL_SEC"     envDefault:"300" validate:"min=30,max=3600"`
	ClaimBatchLimit int `env:"CLAIM_BATCH_LIMIT" envDefault:"100" validate:"min=1,max=1000"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
