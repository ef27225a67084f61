package repository

import (
	"context"
	"time"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/token/domain"
)

// Repository defines persistence for refresh tokens.
type Repository interface {
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Create(ctx context.Context, t *domain.RefreshToken) error
	// Rotate revokes the token identified by oldID and creates the
	// replacement in the same transaction. Returns ErrAlreadyRotated when the
	// old token was revoked concurrently, so a superseded secret can never
	// mint twice.
	Rotate(ctx context.Context, oldID string, usedAt time.Time, replacement *domain.RefreshToken) error
	// Revoke marks the token revoked. Revoking an already-revoked token is a no-op.
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// SweepExpired deletes tokens past expiry, or revoked before the
	// retention cutoff. Delete-where semantics; safe under concurrent issuance.
	SweepExpired(ctx context.Context, now time.Time, retentionCutoff time.Time) (int64, error)
}
