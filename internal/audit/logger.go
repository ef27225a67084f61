// Package audit records security-relevant actions to durable storage.
// Writes are best-effort: an audit failure never fails the guarded request.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/audit/domain"
	auditrepo "github.com/rh-aiservices-bu/litemaas-sub010/internal/audit/repository"
)

// AuditLogger writes a single audit event with explicit action/resource.
// Used by auth, session, and authorization code paths.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, ip, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an AuditLogger that persists to repo. repo may be nil;
// then LogEvent is a no-op.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, ip, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
