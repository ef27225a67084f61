// Package handler exposes the authentication HTTP endpoints: login via
// provider code exchange, refresh rotation, and logout.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/service"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	sessionservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/service"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
)

// RefreshRegistry is the session registry surface needed by the refresh and
// logout endpoints. Satisfied by *sessionservice.Registry.
type RefreshRegistry interface {
	Refresh(ctx context.Context, sessionID, refreshSecret string) (*tokenservice.Pair, error)
	ResolveSessionForSecret(ctx context.Context, refreshSecret string) (string, error)
}

// Handler serves the /auth endpoints.
type Handler struct {
	auth     *authservice.Service
	registry RefreshRegistry
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler returns the auth HTTP handler.
func NewHandler(auth *authservice.Service, registry RefreshRegistry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		auth:     auth,
		registry: registry,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler clock. For tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

type loginRequest struct {
	Code string `json:"code" binding:"required"`
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
	SessionID        string `json:"sessionId"`
}

type loginResponse struct {
	tokenResponse
	User userResponse `json:"user"`
}

type userResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// LoginURL returns the provider authorization URL for the given state.
func (h *Handler) LoginURL(c *gin.Context) {
	state := c.Query("state")
	c.JSON(http.StatusOK, gin.H{"url": h.auth.AuthCodeURL(state)})
}

// Login exchanges an authorization code for a token pair and a new session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, http.StatusBadRequest, middleware.CodeBadRequest, "code is required")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, authservice.ErrUserDeactivated):
			middleware.RespondError(c, http.StatusForbidden, middleware.CodeAccountLocked, "account is deactivated")
		case errors.Is(err, authservice.ErrExchangeFailed):
			middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeLoginFailed, "identity provider exchange failed")
		default:
			h.logger.Error("login failed", zap.Error(err))
			middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "login failed")
		}
		return
	}

	now := h.now()
	c.JSON(http.StatusOK, loginResponse{
		tokenResponse: tokenResponse{
			AccessToken:      res.Pair.AccessToken,
			RefreshToken:     res.Pair.RefreshToken,
			ExpiresIn:        res.Pair.ExpiresIn(now),
			RefreshExpiresIn: res.Pair.RefreshExpiresIn(now),
			SessionID:        res.Session.ID,
		},
		User: userResponse{
			ID:       res.User.ID,
			Username: res.User.Username,
			Email:    res.User.Email,
			Roles:    res.User.Roles,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
	SessionID    string `json:"sessionId"`
}

// Refresh rotates the presented refresh token. A missing sessionId is
// resolved from the token's linked session; every rotation goes through the
// registry so reuse detection always applies. Rejections are uniform 401s
// so a caller cannot distinguish unknown from spent secrets.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, http.StatusBadRequest, middleware.CodeBadRequest, "refreshToken is required")
		return
	}

	ctx := c.Request.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		id, err := h.registry.ResolveSessionForSecret(ctx, req.RefreshToken)
		if err != nil {
			if errors.Is(err, sessionservice.ErrSessionNotFound) {
				middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "invalid refresh token")
				return
			}
			h.logger.Error("refresh session resolution failed", zap.Error(err))
			middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "refresh failed")
			return
		}
		sessionID = id
	}

	pair, err := h.registry.Refresh(ctx, sessionID, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, sessionservice.ErrSessionNotFound),
			errors.Is(err, sessionservice.ErrSessionMismatch),
			errors.Is(err, tokenservice.ErrInvalidRefreshToken),
			errors.Is(err, tokenservice.ErrUserInactive):
			middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "invalid refresh token")
		default:
			h.logger.Error("refresh failed", zap.Error(err))
			middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "refresh failed")
		}
		return
	}

	now := h.now()
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresIn:        pair.ExpiresIn(now),
		RefreshExpiresIn: pair.RefreshExpiresIn(now),
		SessionID:        sessionID,
	})
}

// Logout ends the caller's session. Requires authentication; idempotent.
func (h *Handler) Logout(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "authentication required")
		return
	}
	if err := h.auth.Logout(c.Request.Context(), id.UserID, id.SessionID, c.ClientIP()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		middleware.RespondError(c, http.StatusInternalServerError, middleware.CodeInternal, "logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated caller's identity.
func (h *Handler) Me(c *gin.Context) {
	id, ok := middleware.GetIdentity(c.Request.Context())
	if !ok {
		middleware.RespondError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, "authentication required")
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:       id.UserID,
		Username: id.Username,
		Email:    id.Email,
		Roles:    id.Roles,
	})
}
