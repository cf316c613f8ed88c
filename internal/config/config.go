// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full configuration for the enrollment service.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	LogMode string `env:"LOG_MODE" envDefault:"dev"`

	DB       DB
	Notify   Notify
	Reminder Reminder
}

// DB holds PostgreSQL connection settings.
type DB struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"sessionenroll"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN builds a libpq-compatible connection string.
func (d DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Notify configures the outbound notification endpoint. An empty Endpoint
// disables delivery; notifications are then only logged.
type Notify struct {
	Endpoint string        `env:"NOTIFY_ENDPOINT"`
	From     string        `env:"NOTIFY_FROM" envDefault:"noreply@sessions.local"`
	Timeout  time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
}

// Reminder configures the reminder scanner window and cadence. The schedule
// must fire at least once every 2*ToleranceHours or due windows can be
// skipped entirely; the hourly default leaves plenty of margin.
type Reminder struct {
	LeadHours      float64 `env:"REMINDER_LEAD_HOURS" envDefault:"24"`
	ToleranceHours float64 `env:"REMINDER_TOLERANCE_HOURS" envDefault:"1"`
	Schedule       string  `env:"REMINDER_SCHEDULE" envDefault:"0 * * * *"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
