package repository

import (
	"context"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Upsert creates the user or refreshes email/roles from the identity
	// provider's verified claims. The active flag is never resurrected here.
	Upsert(ctx context.Context, u *domain.User) error
	SetActive(ctx context.Context, id string, active bool) error
}
