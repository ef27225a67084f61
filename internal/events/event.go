// Package events defines the security event stream: structured records of
// authentication lifecycle activity (logins, rotations, revocations, reuse
// detections) published to Kafka for downstream consumers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the auth subsystem.
const (
	TypeLogin               = "auth.login"
	TypeLogout              = "auth.logout"
	TypeRefreshRotated      = "auth.refresh_rotated"
	TypeRefreshReuse        = "auth.refresh_reuse_detected"
	TypeSessionEvicted      = "auth.session_evicted"
	TypeSessionsInvalidated = "auth.sessions_invalidated"
	TypeAuthzDenied         = "auth.authorization_denied"
	TypeUserDeactivated     = "auth.user_deactivated"
)

// Event is a single security event. UserID and SessionID are optional
// depending on the event type; Metadata carries small type-specific details.
type Event struct {
	ID        string            `json:"id"`
	EventType string            `json:"eventType"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	IPAddress string            `json:"ipAddress,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// New builds an event with a fresh ID and the current UTC timestamp.
func New(eventType string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		EventType: eventType,
		Source:    "auth-service",
		CreatedAt: time.Now().UTC(),
	}
}
