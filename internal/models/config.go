package models

import "time"

// RelayConfig represents the relay backend configuration
type RelayConfig struct {
	Port        string
	Issuer      IssuerConfig
	ProgramFile string
	JwtSecret   string
	Redis       RedisConfig
	Idempotency time.Duration
	Cors        CorsConfig
	RateLimit   RateLimitConfig
	Shutdown    time.Duration
}

// IssuerConfig holds the card issuer API credentials
type IssuerConfig struct {
	BaseURL string
	ApiKey  string
	Secret  string
	Timeout time.Duration
}

// RedisConfig holds the idempotency cache connection settings.
// An empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CorsConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ClientConfig represents the configuration shared by the client-side tools
type ClientConfig struct {
	Backend        string
	Hosted         HostedConfig
	Database       DatabaseConfig
	RelayURL       string
	HttpTimeout    time.Duration
	Retry          RetryConfig
	ProvisionDelay time.Duration
	SessionFile    string
}

// HostedConfig holds the hosted auth + Postgres service settings
type HostedConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
}

// DatabaseConfig holds local SQLite connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// RetryConfig is the raw retry policy configuration
type RetryConfig struct {
	MaxAttempts int
	Backoff     string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// MigrationConfig holds the hosted Postgres connection used for schema setup
type MigrationConfig struct {
	DatabaseURL string
	Timeout     time.Duration
}
