package domain

import "time"

// Session correlates a user/device to authentication state across token
// rotations. Cached for fast validation and mirrored in the durable store.
type Session struct {
	ID             string
	UserID         string
	RefreshTokenID string // current linked refresh token; rotates with it
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	EndedAt        *time.Time // nil while the session is live
	IsActive       bool
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }

// Valid reports whether the session is active and unexpired at the given time.
func (s *Session) Valid(now time.Time) bool { return s.IsActive && !s.Expired(now) }

// Summary is the user-facing view of a session. Carries no secrets.
type Summary struct {
	ID             string    `json:"id"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Current        bool      `json:"current"`
}

// Summarize returns the user-facing view, flagging the caller's own session.
func (s *Session) Summarize(currentSessionID string) Summary {
	return Summary{
		ID:             s.ID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		Current:        s.ID == currentSessionID,
	}
}
