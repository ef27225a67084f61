// Package sweeper runs the background cleanup loops: expired and
// retention-exceeded refresh tokens, and expired sessions. The sweeper is
// constructed and started by the server entrypoint, never by the components
// it cleans up after.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/metrics"
)

// TokenStore is the token cleanup surface. Satisfied by *tokenservice.Issuer.
type TokenStore interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SessionStore is the session cleanup surface. Satisfied by *sessionservice.Registry.
type SessionStore interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// Sweeper owns the two cleanup tickers. Token and session sweeps run on
// independent intervals; each is safe under concurrent traffic because the
// underlying deletes are conditional on expiry, not on a snapshot.
type Sweeper struct {
	tokens          TokenStore
	sessions        SessionStore
	tokenInterval   time.Duration
	sessionInterval time.Duration
	logger          *zap.Logger
}

// New returns a Sweeper with the given stores and intervals.
func New(tokens TokenStore, sessions SessionStore, tokenInterval, sessionInterval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		tokens:          tokens,
		sessions:        sessions,
		tokenInterval:   tokenInterval,
		sessionInterval: sessionInterval,
		logger:          logger,
	}
}

// Run blocks until ctx is canceled, firing both sweeps on their intervals.
// Call from a goroutine owned by the server lifecycle.
func (s *Sweeper) Run(ctx context.Context) {
	tokenTicker := time.NewTicker(s.tokenInterval)
	defer tokenTicker.Stop()
	sessionTicker := time.NewTicker(s.sessionInterval)
	defer sessionTicker.Stop()

	s.logger.Info("sweeper started",
		zap.Duration("token_interval", s.tokenInterval),
		zap.Duration("session_interval", s.sessionInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-tokenTicker.C:
			if _, err := s.RunTokenSweep(ctx); err != nil {
				s.logger.Error("token sweep failed", zap.Error(err))
			}
		case <-sessionTicker.C:
			if _, err := s.RunSessionSweep(ctx); err != nil {
				s.logger.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}

// RunTokenSweep removes expired and retention-exceeded refresh tokens once.
// Exposed for deterministic tests and operational tooling.
func (s *Sweeper) RunTokenSweep(ctx context.Context) (int64, error) {
	n, err := s.tokens.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SweptTokens.Add(float64(n))
		s.logger.Info("token sweep removed tokens", zap.Int64("count", n))
	}
	return n, nil
}

// RunSessionSweep ends expired sessions once.
func (s *Sweeper) RunSessionSweep(ctx context.Context) (int64, error) {
	n, err := s.sessions.SweepExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SweptSessions.Add(float64(n))
		s.logger.Info("session sweep ended sessions", zap.Int64("count", n))
	}
	return n, nil
}
