package domain

import "time"

// RefreshToken is the durable record of an issued refresh secret. Only the
// SHA-256 hash of the secret is stored; the plain secret exists client-side.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time // nil when not revoked
	LastUsedAt *time.Time
}

// Revoked reports whether the token has been revoked or superseded.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether the token is past its expiry at the given time.
func (t *RefreshToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// Usable reports whether the token can still mint a new pair at the given time.
func (t *RefreshToken) Usable(now time.Time) bool { return !t.Revoked() && !t.Expired(now) }
