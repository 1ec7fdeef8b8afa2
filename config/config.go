package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Optional: when set, rate-limit counters live in Redis so multiple
	// instances share one budget; otherwise counters are per-process.
	RedisURL string `env:"REDIS_URL"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret   string `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24" validate:"min=1,max=720"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12" validate:"min=4,max=31"`

	// Strict tier, credential endpoints only.
	AuthRateLimitMax       int `env:"AUTH_RATE_LIMIT_MAX" envDefault:"20" validate:"min=1"`
	AuthRateLimitWindowMin int `env:"AUTH_RATE_LIMIT_WINDOW_MIN" envDefault:"15" validate:"min=1"`

	// Coarse tier, every route.
	APIRateLimitMax       int `env:"API_RATE_LIMIT_MAX" envDefault:"100" validate:"min=1"`
	APIRateLimitWindowSec int `env:"API_RATE_LIMIT_WINDOW_SEC" envDefault:"60" validate:"min=1"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AppBaseURL   string `env:"APP_BASE_URL"   envDefault:"http://localhost:8080"`

	// Read by cmd/bootstrap only; the server never auto-creates admins.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
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

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *Config) AuthRateLimitWindow() time.Duration {
	return time.Duration(c.AuthRateLimitWindowMin) * time.Minute
}

func (c *Config) APIRateLimitWindow() time.Duration {
	return time.Duration(c.APIRateLimitWindowSec) * time.Second
}
