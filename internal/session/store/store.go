// Package store provides the session cache shared by every authenticated
// request. Implementations must be safe for concurrent use; the registry
// receives its store explicitly rather than through package state.
package store

import (
	"context"
	"time"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
)

// Store is the session cache in front of the durable session repository.
// Get returning (nil, nil) means cache miss; callers fall back to the
// durable store. The in-memory implementation is for single-instance
// deployments only: it does not fan out across instances, so horizontal
// scaling requires the Redis implementation.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Put(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, sessionID string) error
	// ScanExpired returns the IDs of cached sessions past expiry or marked
	// inactive, for the periodic cache sweep. Implementations whose backend
	// expires entries itself may return nil.
	ScanExpired(ctx context.Context, now time.Time) ([]string, error)
}
