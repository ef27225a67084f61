// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required for the server and migrate commands.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the shared secret used to sign access tokens (HS256); must be at least 32 bytes.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "litemaas-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "litemaas-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTokenTTL is the access token lifetime (e.g. "24h").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "168h" for 7 days).
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// MaxSessionsPerUser caps concurrent active sessions per user; the oldest
	// session is evicted when the cap is exceeded.
	MaxSessionsPerUser int `mapstructure:"MAX_SESSIONS_PER_USER"`
	// SessionSweepInterval is how often the sweeper evicts expired sessions (e.g. "30m").
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// TokenSweepInterval is how often the sweeper purges expired refresh tokens (e.g. "60m").
	TokenSweepInterval string `mapstructure:"TOKEN_SWEEP_INTERVAL"`
	// RevokedRetention is how long revoked refresh tokens are kept before the
	// sweeper deletes them (e.g. "720h" for 30 days).
	RevokedRetention string `mapstructure:"REVOKED_RETENTION"`

	// RedisAddr enables the Redis-backed session cache when set (host:port).
	// Empty means the in-memory cache, which does not fan out across instances.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// OIDCIssuer is the identity provider's issuer URL used for discovery.
	OIDCIssuer string `mapstructure:"OIDC_ISSUER"`
	// OIDCClientID is the OAuth client ID registered with the identity provider.
	OIDCClientID string `mapstructure:"OIDC_CLIENT_ID"`
	// OIDCClientSecret is the OAuth client secret.
	OIDCClientSecret string `mapstructure:"OIDC_CLIENT_SECRET"`
	// OIDCRedirectURL is the redirect URL registered with the identity provider.
	OIDCRedirectURL string `mapstructure:"OIDC_REDIRECT_URL"`
	// OIDCExchangeTimeout bounds the code-exchange call to the identity provider (e.g. "10s").
	OIDCExchangeTimeout string `mapstructure:"OIDC_EXCHANGE_TIMEOUT"`
	// AuthMode selects the identity provider: "oidc" (default) or "mock" for
	// local development without an issuer.
	AuthMode string `mapstructure:"AUTH_MODE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables security-event emission.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the Kafka topic for security events (default litemaas-security-events).
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`

	// Worker-only: Loki URL for the security-event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the security-event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "litemaas-auth")
	v.SetDefault("JWT_AUDIENCE", "litemaas-api")
	v.SetDefault("ACCESS_TOKEN_TTL", "24h")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("MAX_SESSIONS_PER_USER", 10)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "30m")
	v.SetDefault("TOKEN_SWEEP_INTERVAL", "60m")
	v.SetDefault("REVOKED_RETENTION", "720h") // 30d
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("OIDC_ISSUER", "")
	v.SetDefault("OIDC_CLIENT_ID", "")
	v.SetDefault("OIDC_CLIENT_SECRET", "")
	v.SetDefault("OIDC_REDIRECT_URL", "")
	v.SetDefault("OIDC_EXCHANGE_TIMEOUT", "10s")
	v.SetDefault("AUTH_MODE", "oidc")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "litemaas-security-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "litemaas-security-worker")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return nil, errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	if cfg.MaxSessionsPerUser <= 0 {
		return nil, errors.New("config: MAX_SESSIONS_PER_USER must be positive")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SessionSweep parses SessionSweepInterval as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) SessionSweep() time.Duration {
	d, err := time.ParseDuration(c.SessionSweepInterval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// TokenSweep parses TokenSweepInterval as a time.Duration. Returns 60m if unset or invalid.
func (c *Config) TokenSweep() time.Duration {
	d, err := time.ParseDuration(c.TokenSweepInterval)
	if err != nil || d <= 0 {
		return 60 * time.Minute
	}
	return d
}

// Retention parses RevokedRetention as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) Retention() time.Duration {
	d, err := time.ParseDuration(c.RevokedRetention)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// ExchangeTimeout parses OIDCExchangeTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) ExchangeTimeout() time.Duration {
	d, err := time.ParseDuration(c.OIDCExchangeTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if security-event emission is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
