// Package middleware implements the HTTP authentication gate: bearer token
// extraction, access validation, session checks, and role enforcement.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/audit"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/events"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/metrics"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/security"
	sessiondomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
)

// AccessValidator verifies an access token and rechecks the user's active
// flag. Satisfied by *tokenservice.Issuer.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, tokenString string) (*security.AccessClaims, error)
}

// SessionChecker validates the session named in the token's claims.
// Satisfied by *service.Registry. May be nil to skip session checks.
type SessionChecker interface {
	Validate(ctx context.Context, sessionID string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, sessionID string)
}

// Gate bundles the dependencies of the authentication middleware.
type Gate struct {
	validator AccessValidator
	sessions  SessionChecker
	auditor   audit.AuditLogger
	emitter   events.Emitter
	logger    *zap.Logger
}

// NewGate returns the authentication gate. sessions, auditor, and emitter
// may be nil; the corresponding checks and records are skipped.
func NewGate(validator AccessValidator, sessions SessionChecker, auditor audit.AuditLogger, emitter events.Emitter, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{validator: validator, sessions: sessions, auditor: auditor, emitter: emitter, logger: logger}
}

// bearerToken extracts the token from the Authorization header. The scheme
// comparison is case-insensitive; an empty string means no usable token.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// authenticate validates the bearer token and its session, returning the
// identity or an error already classified for the 401 envelope.
func (g *Gate) authenticate(c *gin.Context) (Identity, string, error) {
	token := bearerToken(c)
	if token == "" {
		return Identity{}, CodeUnauthorized, errors.New("missing bearer token")
	}
	claims, err := g.validator.ValidateAccess(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			metrics.AccessValidations.WithLabelValues("expired").Inc()
			return Identity{}, CodeTokenExpired, err
		case errors.Is(err, tokenservice.ErrUserInactive):
			metrics.AccessValidations.WithLabelValues("inactive_user").Inc()
			return Identity{}, CodeUnauthorized, err
		default:
			metrics.AccessValidations.WithLabelValues("invalid").Inc()
			return Identity{}, CodeUnauthorized, err
		}
	}
	if g.sessions != nil && claims.SessionID != "" {
		if _, err := g.sessions.Validate(c.Request.Context(), claims.SessionID); err != nil {
			metrics.AccessValidations.WithLabelValues("invalid").Inc()
			return Identity{}, CodeUnauthorized, err
		}
		// Activity touch is fire-and-forget; request cancellation must not
		// abort it.
		go g.sessions.Touch(context.Background(), claims.SessionID)
	}
	metrics.AccessValidations.WithLabelValues("ok").Inc()
	return Identity{
		UserID:    claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
	}, "", nil
}

// RequireAuth rejects unauthenticated requests with a 401 envelope and
// attaches the identity to the request context otherwise.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, code, err := g.authenticate(c)
		if err != nil {
			AbortError(c, http.StatusUnauthorized, code, "authentication required")
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is presented and
// lets the request through unauthenticated otherwise.
func (g *Gate) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, _, err := g.authenticate(c); err == nil {
			c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	}
}

// RequireRole rejects authenticated callers lacking all of the given roles
// with a 403 envelope naming the required roles. Denials are audited and
// emitted on the event stream. Must run after RequireAuth.
func (g *Gate) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c.Request.Context())
		if !ok {
			AbortError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		for _, role := range roles {
			if id.HasRole(role) {
				c.Next()
				return
			}
		}
		metrics.AuthorizationDenied.Inc()
		g.logger.Warn("authorization denied",
			zap.String("user_id", id.UserID),
			zap.Strings("required_roles", roles),
			zap.String("path", c.Request.URL.Path))
		if g.auditor != nil {
			g.auditor.LogEvent(c.Request.Context(), id.UserID, "authorization_denied",
				c.Request.Method+" "+c.Request.URL.Path, c.ClientIP(), strings.Join(roles, ","))
		}
		ev := events.New(events.TypeAuthzDenied)
		ev.UserID = id.UserID
		ev.SessionID = id.SessionID
		ev.IPAddress = c.ClientIP()
		ev.Metadata = map[string]string{"required_roles": strings.Join(roles, ",")}
		events.EmitAsync(g.emitter, c.Request.Context(), ev)
		AbortError(c, http.StatusForbidden, CodeForbidden,
			"requires one of roles: "+strings.Join(roles, ", "))
	}
}
