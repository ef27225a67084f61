package repository

import (
	"context"
	"time"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
)

// Repository defines durable persistence for sessions. The cache in
// internal/session/store sits in front of it; on cache miss the registry
// falls back here rather than assuming cache completeness.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByRefreshTokenID returns the active session linked to the refresh
	// token, or nil if none.
	GetByRefreshTokenID(ctx context.Context, refreshTokenID string) (*domain.Session, error)
	// ListActiveByUser returns the user's active sessions ordered oldest first.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// End marks the session inactive and records when it ended. Ending an
	// already-ended session is a no-op.
	End(ctx context.Context, id string, at time.Time) error
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	// UpdateRefreshToken points the session at its rotated refresh token.
	UpdateRefreshToken(ctx context.Context, sessionID, refreshTokenID string, at time.Time) error
	// SweepExpired ends sessions past expiry and returns how many were ended.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
