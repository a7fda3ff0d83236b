package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownStatuses = []string{"active", "waiting", "expired", "suspended"}

type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"APP_ENV" envDefault:"development"`
	BotToken        string        `env:"BOT_TOKEN,required"`
	AdminID         int64         `env:"ADMIN_ID,required"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisURL        string        `env:"REDIS_URL,required"`
	PeriodDays      int           `env:"PERIOD_DAYS" envDefault:"30"`
	Horizons        []int         `env:"REMINDER_HORIZONS" envDefault:"3,1,0" envSeparator:","`
	TickInterval    time.Duration `env:"TICK_INTERVAL" envDefault:"60s"`
	TickConcurrency int           `env:"TICK_CONCURRENCY" envDefault:"4"`
	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	ClaimStatuses   []string      `env:"CLAIM_STATUSES" envDefault:"active,waiting" envSeparator:","`
	BillingTimezone string        `env:"BILLING_TIMEZONE" envDefault:"UTC"`
	AdminAPIKeyHash string        `env:"ADMIN_API_KEY_HASH"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location returns the billing time zone, falling back to UTC when the
// configured name cannot be loaded. Validate rejects unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) AdminAPIEnabled() bool {
	return c.AdminAPIKeyHash != ""
}

func (c *Config) Validate() error {
	if c.AdminID == 0 {
		return fmt.Errorf("ADMIN_ID must be a non-zero chat user id")
	}
	if c.PeriodDays <= 0 {
		return fmt.Errorf("PERIOD_DAYS must be positive, got %d", c.PeriodDays)
	}

	if len(c.Horizons) == 0 {
		return fmt.Errorf("REMINDER_HORIZONS must list at least one day")
	}
	seen := make(map[int]bool, len(c.Horizons))
	for _, h := range c.Horizons {
		if h < 0 {
			return fmt.Errorf("REMINDER_HORIZONS must not contain negative days, got %d", h)
		}
		if seen[h] {
			return fmt.Errorf("REMINDER_HORIZONS contains %d twice", h)
		}
		seen[h] = true
	}

	if c.TickInterval < time.Second {
		return fmt.Errorf("TICK_INTERVAL must be at least 1s, got %s", c.TickInterval)
	}
	if c.TickInterval < time.Minute {
		log.Warn().Dur("interval", c.TickInterval).Msg("TICK_INTERVAL below 60s polls the store aggressively")
	}
	if c.TickConcurrency < 1 {
		return fmt.Errorf("TICK_CONCURRENCY must be at least 1, got %d", c.TickConcurrency)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout)
	}

	if len(c.ClaimStatuses) == 0 {
		return fmt.Errorf("CLAIM_STATUSES must list at least one status")
	}
	for _, s := range c.ClaimStatuses {
		if !isKnownStatus(s) {
			return fmt.Errorf("CLAIM_STATUSES contains unknown status %q (allowed: %s)", s, strings.Join(knownStatuses, ","))
		}
	}

	if _, err := time.LoadLocation(c.BillingTimezone); err != nil {
		return fmt.Errorf("BILLING_TIMEZONE %q: %w", c.BillingTimezone, err)
	}

	if c.AdminAPIKeyHash != "" {
		if !strings.HasPrefix(c.AdminAPIKeyHash, "$2a$") &&
			!strings.HasPrefix(c.AdminAPIKeyHash, "$2b$") &&
			!strings.HasPrefix(c.AdminAPIKeyHash, "$2y$") {
			return fmt.Errorf("ADMIN_API_KEY_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <key>)")
		}
	}

	if c.IsProduction() && strings.HasPrefix(c.RedisURL, "redis://") {
		log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
	}

	return nil
}

func isKnownStatus(s string) bool {
	for _, k := range knownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
