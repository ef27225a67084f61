package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8081")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8081")
	}
	if cfg.JWTIssuer != "litemaas-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "litemaas-auth")
	}
	if cfg.JWTAudience != "litemaas-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "litemaas-api")
	}
	if cfg.AccessTokenTTL != "24h" {
		t.Errorf("AccessTokenTTL = %q, want %q", cfg.AccessTokenTTL, "24h")
	}
	if cfg.RefreshTokenTTL != "168h" {
		t.Errorf("RefreshTokenTTL = %q, want %q", cfg.RefreshTokenTTL, "168h")
	}
	if cfg.MaxSessionsPerUser != 10 {
		t.Errorf("MaxSessionsPerUser = %d, want 10", cfg.MaxSessionsPerUser)
	}
	if cfg.SecurityEventsTopic != "litemaas-security-events" {
		t.Errorf("SecurityEventsTopic = %q, want default", cfg.SecurityEventsTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("MAX_SESSIONS_PER_USER", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.MaxSessionsPerUser != 3 {
		t.Errorf("MaxSessionsPerUser = %d, want 3", cfg.MaxSessionsPerUser)
	}
}

func TestLoad_RejectsShortJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8081")
	os.Setenv("JWT_SECRET", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a JWT secret shorter than 32 bytes")
	}
}

func TestLoad_RejectsNonPositiveSessionCap(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8081")
	os.Setenv("MAX_SESSIONS_PER_USER", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject MAX_SESSIONS_PER_USER = 0")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		AccessTokenTTL:       "30m",
		RefreshTokenTTL:      "48h",
		SessionSweepInterval: "5m",
		TokenSweepInterval:   "10m",
		RevokedRetention:     "24h",
		OIDCExchangeTimeout:  "3s",
	}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
	if got := cfg.RefreshTTL(); got != 48*time.Hour {
		t.Errorf("RefreshTTL = %v, want 48h", got)
	}
	if got := cfg.SessionSweep(); got != 5*time.Minute {
		t.Errorf("SessionSweep = %v, want 5m", got)
	}
	if got := cfg.TokenSweep(); got != 10*time.Minute {
		t.Errorf("TokenSweep = %v, want 10m", got)
	}
	if got := cfg.Retention(); got != 24*time.Hour {
		t.Errorf("Retention = %v, want 24h", got)
	}
	if got := cfg.ExchangeTimeout(); got != 3*time.Second {
		t.Errorf("ExchangeTimeout = %v, want 3s", got)
	}
}

func TestDurationAccessors_FallBackOnInvalid(t *testing.T) {
	cfg := &Config{AccessTokenTTL: "bogus", RefreshTokenTTL: "-1h"}
	if got := cfg.AccessTTL(); got != 24*time.Hour {
		t.Errorf("AccessTTL fallback = %v, want 24h", got)
	}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL fallback = %v, want 168h", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: "broker1:9092, broker2:9092 ,"}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "broker1:9092" || got[1] != "broker2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil broker list")
	}
}
