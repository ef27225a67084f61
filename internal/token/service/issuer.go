package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/security"
	tokendomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/domain"
	tokenrepo "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/repository"
	userdomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/user/domain"
)

// Sentinel errors for the issuer; handlers map them to the error envelope.
var (
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUserInactive        = errors.New("user is not active")
)

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	RefreshTokenID   string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn returns the access token lifetime in whole seconds from now.
func (p *Pair) ExpiresIn(now time.Time) int64 {
	return int64(p.AccessExpiresAt.Sub(now).Seconds())
}

// RefreshExpiresIn returns the refresh token lifetime in whole seconds from now.
func (p *Pair) RefreshExpiresIn(now time.Time) int64 {
	return int64(p.RefreshExpiresAt.Sub(now).Seconds())
}

// RotateResult is the outcome of a successful rotation.
type RotateResult struct {
	Pair       *Pair
	UserID     string
	OldTokenID string
}

// UserRepo is the minimal user repository needed by the issuer.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// TokenRepo is the refresh-token repository needed by the issuer.
type TokenRepo interface {
	GetByHash(ctx context.Context, tokenHash string) (*tokendomain.RefreshToken, error)
	Create(ctx context.Context, t *tokendomain.RefreshToken) error
	Rotate(ctx context.Context, oldID string, usedAt time.Time, replacement *tokendomain.RefreshToken) error
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	SweepExpired(ctx context.Context, now time.Time, retentionCutoff time.Time) (int64, error)
}

// Issuer mints, rotates, validates, and revokes token pairs. It owns the
// durable refresh-token store; sessions delegate all token operations here.
type Issuer struct {
	signer     *security.Signer
	tokens     TokenRepo
	users      UserRepo
	refreshTTL time.Duration
	retention  time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewIssuer returns an Issuer with the given dependencies. retention is how
// long revoked tokens are kept for audit before the sweep deletes them.
func NewIssuer(signer *security.Signer, tokens TokenRepo, users UserRepo, refreshTTL, retention time.Duration, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		signer:     signer,
		tokens:     tokens,
		users:      users,
		refreshTTL: refreshTTL,
		retention:  retention,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the issuer's clock. For tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue mints a new access/refresh pair for the user and session. The refresh
// token row is durably persisted before the pair is returned; a pair is never
// handed out without its backing record.
func (i *Issuer) Issue(ctx context.Context, user *userdomain.User, sessionID string) (*Pair, error) {
	accessToken, _, accessExp, err := i.signer.Sign(user.ID, user.Username, user.Email, user.Roles, sessionID)
	if err != nil {
		return nil, err
	}
	secret, err := security.NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	now := i.now()
	rec := &tokendomain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: security.HashRefreshSecret(secret),
		ExpiresAt: now.Add(i.refreshTTL),
		CreatedAt: now,
	}
	if err := i.tokens.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      accessToken,
		RefreshToken:     secret,
		RefreshTokenID:   rec.ID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// ValidateAccess verifies the access token's signature and expiry, then
// checks the user's current active flag in durable storage. A structurally
// valid, unexpired token is still rejected when the user has since been
// deactivated or removed.
func (i *Issuer) ValidateAccess(ctx context.Context, tokenString string) (*security.AccessClaims, error) {
	claims, err := i.signer.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := i.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrUserInactive
	}
	return claims, nil
}

// Rotate exchanges a refresh secret for a new pair. The presented token is
// revoked atomically with the replacement's creation; re-presenting a
// superseded secret always fails with ErrInvalidRefreshToken.
func (i *Issuer) Rotate(ctx context.Context, refreshSecret, sessionID string) (*RotateResult, error) {
	if refreshSecret == "" {
		return nil, ErrInvalidRefreshToken
	}
	now := i.now()
	rec, err := i.tokens.GetByHash(ctx, security.HashRefreshSecret(refreshSecret))
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Usable(now) {
		return nil, ErrInvalidRefreshToken
	}
	user, err := i.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		// A deactivated user presenting a live refresh secret forfeits the
		// whole credential chain, not just this token.
		if _, revokeErr := i.RevokeAll(ctx, rec.UserID); revokeErr != nil {
			i.logger.Error("failed to revoke tokens for inactive user",
				zap.String("user_id", rec.UserID), zap.Error(revokeErr))
		}
		return nil, ErrUserInactive
	}

	secret, err := security.NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	replacement := &tokendomain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    rec.UserID,
		TokenHash: security.HashRefreshSecret(secret),
		ExpiresAt: now.Add(i.refreshTTL),
		CreatedAt: now,
	}
	if err := i.tokens.Rotate(ctx, rec.ID, now, replacement); err != nil {
		if errors.Is(err, tokenrepo.ErrAlreadyRotated) {
			i.logger.Warn("refresh token rotation lost race", zap.String("token_id", rec.ID))
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	accessToken, _, accessExp, err := i.signer.Sign(user.ID, user.Username, user.Email, user.Roles, sessionID)
	if err != nil {
		return nil, err
	}
	return &RotateResult{
		Pair: &Pair{
			AccessToken:      accessToken,
			RefreshToken:     secret,
			RefreshTokenID:   replacement.ID,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: replacement.ExpiresAt,
		},
		UserID:     rec.UserID,
		OldTokenID: rec.ID,
	}, nil
}

// LookupBySecret returns the durable record for a refresh secret, or nil when
// unknown. Used to resolve the owning session for token-only refresh calls.
func (i *Issuer) LookupBySecret(ctx context.Context, refreshSecret string) (*tokendomain.RefreshToken, error) {
	if refreshSecret == "" {
		return nil, nil
	}
	return i.tokens.GetByHash(ctx, security.HashRefreshSecret(refreshSecret))
}

// Revoke revokes the token matching the secret. Idempotent: revoking an
// already-revoked or nonexistent token is a successful no-op.
func (i *Issuer) Revoke(ctx context.Context, refreshSecret string) error {
	if refreshSecret == "" {
		return nil
	}
	rec, err := i.tokens.GetByHash(ctx, security.HashRefreshSecret(refreshSecret))
	if err != nil {
		return err
	}
	if rec == nil || rec.Revoked() {
		return nil
	}
	return i.tokens.Revoke(ctx, rec.ID, i.now())
}

// RevokeByID revokes the token with the given id. Idempotent. Used by the
// session registry to cascade revocation from session invalidation.
func (i *Issuer) RevokeByID(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	return i.tokens.Revoke(ctx, tokenID, i.now())
}

// RevokeAll revokes every non-revoked refresh token owned by the user.
// Used for "log out everywhere", password change, and suspicious activity.
func (i *Issuer) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := i.tokens.RevokeAllForUser(ctx, userID, i.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		i.logger.Info("revoked all refresh tokens for user", zap.String("user_id", userID), zap.Int64("count", n))
	}
	return n, nil
}

// SweepExpired deletes tokens past expiry, or revoked longer ago than the
// retention window. Safe to run concurrently with issuance and validation.
func (i *Issuer) SweepExpired(ctx context.Context) (int64, error) {
	now := i.now()
	return i.tokens.SweepExpired(ctx, now, now.Add(-i.retention))
}
