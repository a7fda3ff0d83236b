package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// Startup connection retry
const (
	DBConnectAttempts = 10
	DBConnectBackoff  = 2 * time.Second
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Telegram long polling. The HTTP client timeout must outlive the poll timeout.
const (
	TelegramPollTimeoutSeconds = 60
	TelegramHTTPTimeout        = 75 * time.Second
	UpdateHandleTimeout        = 30 * time.Second
)

// "I paid" button taps per user
const (
	PayTapLimit  = 5
	PayTapWindow = time.Minute
)

// Admin listing sizes
const (
	AdminUsersLimit   = 20
	AdminClaimsLimit  = 10
	AdminFindLimit    = 10
	AdminErrorExcerpt = 200
	AdminAPIPageLimit = 100
)

// Admin HTTP API requests per client address
const (
	AdminAPIRateLimit  = 60
	AdminAPIRateWindow = time.Minute
)

// Reminder scheduler. The lease outlives the tick budget so no other replica
// starts while a tick may still be sending.
const (
	ReminderRecordTimeout = 5 * time.Second
	TickLeaseMargin       = 10 * time.Second
)
