package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/audit"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/events"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/idp"
	sessiondomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
	userdomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/user/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP status codes.
var (
	ErrExchangeFailed  = errors.New("identity provider exchange failed")
	ErrUserDeactivated = errors.New("user account is deactivated")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Upsert(ctx context.Context, u *userdomain.User) error
}

// SessionRegistry is the session lifecycle surface needed by the auth service.
type SessionRegistry interface {
	Create(ctx context.Context, user *userdomain.User, ipAddress, userAgent string) (*sessiondomain.Session, *tokenservice.Pair, error)
	Invalidate(ctx context.Context, sessionID string) error
}

// LoginResult is the outcome of a completed login.
type LoginResult struct {
	User    *userdomain.User
	Session *sessiondomain.Session
	Pair    *tokenservice.Pair
}

// Service orchestrates login and logout: provider exchange, user
// provisioning, and session creation. Token mechanics live in the issuer
// and session lifecycle in the registry; this service only sequences them.
type Service struct {
	provider idp.Provider
	users    UserRepo
	registry SessionRegistry
	auditor  audit.AuditLogger
	emitter  events.Emitter
	logger   *zap.Logger
	now      func() time.Time
}

// NewService returns an auth service with the given dependencies.
// auditor and emitter may be nil to disable audit writes and the event stream.
func NewService(
	provider idp.Provider,
	users UserRepo,
	registry SessionRegistry,
	auditor audit.AuditLogger,
	emitter events.Emitter,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		users:    users,
		registry: registry,
		auditor:  auditor,
		emitter:  emitter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. For tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AuthCodeURL returns the provider authorization URL for the given state.
func (s *Service) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// Login exchanges the authorization code, provisions or refreshes the user
// row, and opens a session. A user row is created on first login; later
// logins refresh email and roles but never the active flag, so deactivation
// sticks until an operator clears it.
func (s *Service) Login(ctx context.Context, code, ipAddress, userAgent string) (*LoginResult, error) {
	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("login exchange failed", zap.Error(err))
		s.audit(ctx, "", "login_failure", "auth", ipAddress, err.Error())
		return nil, errors.Join(ErrExchangeFailed, err)
	}

	now := s.now()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Username:  identity.Username,
		Email:     identity.Email,
		Roles:     rolesFromGroups(identity.Groups),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	// Re-read so returning users keep their original ID and active flag.
	user, err = s.users.GetByUsername(ctx, identity.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user row missing after upsert")
	}
	if !user.IsActive {
		s.audit(ctx, user.ID, "login_denied_inactive", "auth", ipAddress, "")
		ev := events.New(events.TypeUserDeactivated)
		ev.UserID = user.ID
		ev.IPAddress = ipAddress
		events.EmitAsync(s.emitter, ctx, ev)
		return nil, ErrUserDeactivated
	}

	sess, pair, err := s.registry.Create(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("session_id", sess.ID))
	s.audit(ctx, user.ID, "login", "auth", ipAddress, "")
	ev := events.New(events.TypeLogin)
	ev.UserID = user.ID
	ev.SessionID = sess.ID
	ev.IPAddress = ipAddress
	ev.UserAgent = userAgent
	events.EmitAsync(s.emitter, ctx, ev)

	return &LoginResult{User: user, Session: sess, Pair: pair}, nil
}

// Logout invalidates the session and its linked refresh token. Idempotent.
func (s *Service) Logout(ctx context.Context, userID, sessionID, ipAddress string) error {
	if err := s.registry.Invalidate(ctx, sessionID); err != nil {
		return err
	}
	s.audit(ctx, userID, "logout", "auth", ipAddress, "")
	ev := events.New(events.TypeLogout)
	ev.UserID = userID
	ev.SessionID = sessionID
	ev.IPAddress = ipAddress
	events.EmitAsync(s.emitter, ctx, ev)
	return nil
}

func (s *Service) audit(ctx context.Context, userID, action, resource, ip, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, userID, action, resource, ip, metadata)
}

// rolesFromGroups maps provider group claims to application roles. Every
// authenticated user holds the base role; provider groups add to it.
func rolesFromGroups(groups []string) []string {
	seen := map[string]bool{"user": true}
	roles := []string{"user"}
	for _, g := range groups {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		roles = append(roles, g)
	}
	sort.Strings(roles[1:])
	return roles
}
