// Package handler exposes the authenticated session management endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/audit"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/service"
)

// Registry is the session registry surface needed by the session endpoints.
// Satisfied by *service.Registry.
type Registry interface {
	Validate(ctx context.Context, sessionID string) (*domain.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForUser(ctx context.Context, userID, exceptSessionID string) (int, error)
	ListForUser(ctx context.Context, userID, currentSessionID string) ([]domain.Summary, error)
}

// Handler serves the /auth/sessions endpoints. All routes require
// authentication; callers only ever see and manage their own sessions.
type Handler struct {
	registry Registry
	auditor  audit.AuditLogger
	logger   *zap.Logger
}

// NewHandler returns the session HTTP handler. auditor may be nil.
func NewHandler(registry Registry, auditor audit.AuditLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, auditor: auditor, logger: logger}
}

// List returns the caller's active sessions, oldest first, flagging the
// session behind the presented token.
func (h *Handler) List(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "authentication required")
		return
	}
	sessions, err := h.registry.ListForUser(c.Request.Context(), id.UserID, id.SessionID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.String("user_id", id.UserID), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "failed to list sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Revoke invalidates one of the caller's sessions by ID. A session that does
// not exist or belongs to another user is reported as not found.
func (h *Handler) Revoke(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "authentication required")
		return
	}
	sessionID := c.Param("id")

	sess, err := h.registry.Validate(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			middleware.RespondError(c, http.StatusNotFound, middleware.CodeNotFound, "session not found")
			return
		}
		h.logger.Error("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "failed to revoke session")
		return
	}
	if sess.UserID != id.UserID {
		// Do not reveal that the session exists.
		middleware.RespondError(c, http.StatusNotFound, middleware.CodeNotFound, "session not found")
		return
	}

	if err := h.registry.Invalidate(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("session invalidation failed", zap.String("session_id", sessionID), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "failed to revoke session")
		return
	}
	if h.auditor != nil {
		h.auditor.LogEvent(c.Request.Context(), id.UserID, "session_revoke", "sessions/"+sessionID, c.ClientIP(), "")
	}
	c.JSON(http.StatusOK, gin.H{"message": "session revoked"})
}

// RevokeOthers invalidates every session of the caller except the current
// one, returning how many were revoked.
func (h *Handler) RevokeOthers(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "authentication required")
		return
	}
	n, err := h.registry.InvalidateAllForUser(c.Request.Context(), id.UserID, id.SessionID)
	if err != nil {
		h.logger.Error("bulk session invalidation failed", zap.String("user_id", id.UserID), zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "failed to revoke sessions")
		return
	}
	if h.auditor != nil {
		h.auditor.LogEvent(c.Request.Context(), id.UserID, "session_revoke_all", "sessions", c.ClientIP(), "")
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}
