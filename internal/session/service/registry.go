package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/events"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/metrics"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/repository"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/store"
	tokendomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/domain"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
	userdomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/user/domain"
)

// Sentinel errors for the session registry; handlers map them to HTTP status codes.
var (
	ErrSessionNotFound = errors.New("session not found or no longer active")
	ErrSessionMismatch = errors.New("refresh token does not belong to this session")
)

// Issuer is the credential issuer needed by the registry. Satisfied by
// *tokenservice.Issuer.
type Issuer interface {
	Issue(ctx context.Context, user *userdomain.User, sessionID string) (*tokenservice.Pair, error)
	Rotate(ctx context.Context, refreshSecret, sessionID string) (*tokenservice.RotateResult, error)
	LookupBySecret(ctx context.Context, refreshSecret string) (*tokendomain.RefreshToken, error)
	RevokeByID(ctx context.Context, tokenID string) error
}

// Registry owns the session lifecycle: creation with the per-user cap,
// cache-first validation, refresh rotation, and invalidation. The durable
// repository is authoritative; the cache is an optimization that the
// registry keeps consistent on every state change.
type Registry struct {
	issuer      Issuer
	sessions    repository.Repository
	cache       store.Store
	maxSessions int
	sessionTTL  time.Duration
	emitter     events.Emitter
	logger      *zap.Logger
	now         func() time.Time
}

// NewRegistry returns a Registry enforcing the given per-user session cap.
// sessionTTL bounds the absolute session lifetime; it matches the refresh
// token TTL so a session never outlives its credential chain. emitter may
// be nil to disable the security event stream.
func NewRegistry(
	issuer Issuer,
	sessions repository.Repository,
	cache store.Store,
	maxSessions int,
	sessionTTL time.Duration,
	emitter events.Emitter,
	logger *zap.Logger,
) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		issuer:      issuer,
		sessions:    sessions,
		cache:       cache,
		maxSessions: maxSessions,
		sessionTTL:  sessionTTL,
		emitter:     emitter,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the registry clock. For tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create issues a token pair and opens a session bound to it. The durable
// row is written before the cache entry so a crash never leaves a session
// that validates from cache but has no durable backing. If persisting the
// session fails, the just-minted refresh token is revoked so no orphaned
// credential survives a partial login.
//
// After the session is live, the per-user cap is enforced: when the user
// now holds more than maxSessions active sessions, the oldest are
// invalidated (and their linked refresh tokens revoked) until the cap holds.
func (r *Registry) Create(ctx context.Context, user *userdomain.User, ipAddress, userAgent string) (*domain.Session, *tokenservice.Pair, error) {
	now := r.now()
	sessionID := uuid.New().String()

	pair, err := r.issuer.Issue(ctx, user, sessionID)
	if err != nil {
		return nil, nil, err
	}

	sess := &domain.Session{
		ID:             sessionID,
		UserID:         user.ID,
		RefreshTokenID: pair.RefreshTokenID,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(r.sessionTTL),
		IsActive:       true,
	}
	if err := r.sessions.Create(ctx, sess); err != nil {
		if revokeErr := r.issuer.RevokeByID(ctx, pair.RefreshTokenID); revokeErr != nil {
			r.logger.Error("failed to revoke refresh token after session create failure",
				zap.String("token_id", pair.RefreshTokenID), zap.Error(revokeErr))
		}
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	r.cacheActive(ctx, sess)

	if err := r.enforceCap(ctx, user.ID, sessionID); err != nil {
		r.logger.Error("session cap enforcement failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	return sess, pair, nil
}

// enforceCap invalidates the user's oldest active sessions until at most
// maxSessions remain. keepID is the just-created session and is never evicted.
func (r *Registry) enforceCap(ctx context.Context, userID, keepID string) error {
	active, err := r.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	excess := len(active) - r.maxSessions
	if excess <= 0 {
		return nil
	}
	var firstErr error
	for _, s := range active {
		if excess == 0 {
			break
		}
		if s.ID == keepID {
			continue
		}
		if err := r.Invalidate(ctx, s.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		excess--
		metrics.SessionsEvicted.Inc()
		r.logger.Info("evicted oldest session over per-user cap",
			zap.String("user_id", userID),
			zap.String("session_id", s.ID),
			zap.Int("max_sessions", r.maxSessions))
		ev := events.New(events.TypeSessionEvicted)
		ev.UserID = userID
		ev.SessionID = s.ID
		ev.Metadata = map[string]string{"max_sessions": strconv.Itoa(r.maxSessions)}
		events.EmitAsync(r.emitter, ctx, ev)
	}
	return firstErr
}

// cacheActive installs an active cache entry, then re-reads the durable row.
// If the session was ended while the write was in flight the entry is
// replaced with a tombstone, so an active write can never outlive a completed
// Invalidate: either the invalidator's post-end tombstone lands after this
// Put, or the re-read here observes the ended row and tombstones the entry.
func (r *Registry) cacheActive(ctx context.Context, sess *domain.Session) {
	if err := r.cache.Put(ctx, sess); err != nil {
		r.logger.Warn("session cache put failed", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	cur, err := r.sessions.GetByID(ctx, sess.ID)
	if err != nil {
		// Cannot confirm the row; drop the entry so validation falls back
		// to the durable store.
		if delErr := r.cache.Delete(ctx, sess.ID); delErr != nil {
			r.logger.Warn("session cache delete failed", zap.String("session_id", sess.ID), zap.Error(delErr))
		}
		return
	}
	if cur == nil || !cur.IsActive {
		r.cacheTombstone(ctx, sess)
	}
}

// cacheTombstone writes an inactive cache entry for the session. Tombstones
// are left in place until the cache sweep or the backend TTL removes them.
func (r *Registry) cacheTombstone(ctx context.Context, sess *domain.Session) {
	now := r.now()
	tombstone := *sess
	tombstone.IsActive = false
	if tombstone.EndedAt == nil {
		tombstone.EndedAt = &now
	}
	if err := r.cache.Put(ctx, &tombstone); err != nil {
		r.logger.Warn("session cache tombstone failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// Validate returns the session if it is active and unexpired, or
// ErrSessionNotFound. The cache is consulted first; on a miss the durable
// store is authoritative. Validate never writes the cache back: active
// entries are written only through cacheActive, which re-checks the durable
// row, so a completed Invalidate stays visible to every later Validate even
// when the two race.
func (r *Registry) Validate(ctx context.Context, sessionID string) (*domain.Session, error) {
	now := r.now()

	cached, err := r.cache.Get(ctx, sessionID)
	if err != nil {
		r.logger.Warn("session cache get failed, falling back to durable store",
			zap.String("session_id", sessionID), zap.Error(err))
		cached = nil
	}
	if cached != nil {
		if cached.Valid(now) {
			return cached, nil
		}
		if cached.Expired(now) {
			// Expired entries are safe to drop here; inactive tombstones stay
			// until the sweep so a late active write cannot replace them.
			if delErr := r.cache.Delete(ctx, sessionID); delErr != nil {
				r.logger.Warn("session cache delete failed", zap.String("session_id", sessionID), zap.Error(delErr))
			}
		}
		return nil, ErrSessionNotFound
	}

	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Valid(now) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Touch records request activity on the session. Best-effort: failures are
// logged, never surfaced to the request path. Only the durable row is
// updated; the cached copy keeps its stale activity timestamp rather than
// risk re-installing an entry for a session invalidated mid-touch. Validity
// checks never read LastActivityAt, so the staleness is cosmetic.
func (r *Registry) Touch(ctx context.Context, sessionID string) {
	if err := r.sessions.UpdateLastActivity(ctx, sessionID, r.now()); err != nil {
		r.logger.Warn("session activity update failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// ResolveSessionForSecret returns the ID of the active session linked to the
// refresh secret, or ErrSessionNotFound. Lets token-only refresh calls join
// the single rotation path through Refresh.
func (r *Registry) ResolveSessionForSecret(ctx context.Context, refreshSecret string) (string, error) {
	rec, err := r.issuer.LookupBySecret(ctx, refreshSecret)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrSessionNotFound
	}
	sess, err := r.sessions.GetByRefreshTokenID(ctx, rec.ID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrSessionNotFound
	}
	return sess.ID, nil
}

// Refresh rotates the session's refresh token and returns the new pair.
// The presented secret must resolve to the token currently linked to the
// session; anything else is treated as a compromise signal and the session
// is invalidated before the error is returned. A rejected rotation (spent,
// expired, or unknown secret) invalidates the session the same way.
func (r *Registry) Refresh(ctx context.Context, sessionID, refreshSecret string) (*tokenservice.Pair, error) {
	now := r.now()

	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Valid(now) {
		metrics.RefreshRotations.WithLabelValues("rejected").Inc()
		return nil, ErrSessionNotFound
	}

	rec, err := r.issuer.LookupBySecret(ctx, refreshSecret)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		metrics.RefreshRotations.WithLabelValues("rejected").Inc()
		r.compromised(ctx, sess, "unknown_refresh_secret")
		return nil, tokenservice.ErrInvalidRefreshToken
	}
	if rec.ID != sess.RefreshTokenID || rec.UserID != sess.UserID {
		metrics.RefreshRotations.WithLabelValues("rejected").Inc()
		r.compromised(ctx, sess, "refresh_token_session_mismatch")
		return nil, ErrSessionMismatch
	}

	res, err := r.issuer.Rotate(ctx, refreshSecret, sessionID)
	if err != nil {
		if errors.Is(err, tokenservice.ErrInvalidRefreshToken) {
			metrics.RefreshRotations.WithLabelValues("rejected").Inc()
			r.compromised(ctx, sess, "refresh_token_rejected")
		}
		return nil, err
	}

	if err := r.sessions.UpdateRefreshToken(ctx, sessionID, res.Pair.RefreshTokenID, now); err != nil {
		// The rotation committed but the session still points at the revoked
		// token, so the next legitimate refresh would look like a replay.
		// Unwind: revoke the replacement, end the session, fail the call.
		r.logger.Error("failed to link rotated refresh token to session",
			zap.String("session_id", sessionID), zap.Error(err))
		if revokeErr := r.issuer.RevokeByID(ctx, res.Pair.RefreshTokenID); revokeErr != nil {
			r.logger.Error("failed to revoke unlinked replacement token",
				zap.String("token_id", res.Pair.RefreshTokenID), zap.Error(revokeErr))
		}
		if invErr := r.Invalidate(ctx, sessionID); invErr != nil {
			r.logger.Error("failed to invalidate session after link failure",
				zap.String("session_id", sessionID), zap.Error(invErr))
		}
		return nil, fmt.Errorf("link rotated refresh token: %w", err)
	}

	cur, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cur == nil || !cur.Valid(now) {
		// Invalidated while rotating. The invalidator may have revoked the
		// superseded token id; make sure the replacement dies with it.
		if revokeErr := r.issuer.RevokeByID(ctx, res.Pair.RefreshTokenID); revokeErr != nil {
			r.logger.Error("failed to revoke replacement token for ended session",
				zap.String("token_id", res.Pair.RefreshTokenID), zap.Error(revokeErr))
		}
		metrics.RefreshRotations.WithLabelValues("rejected").Inc()
		return nil, ErrSessionNotFound
	}
	r.cacheActive(ctx, cur)

	metrics.RefreshRotations.WithLabelValues("ok").Inc()
	ev := events.New(events.TypeRefreshRotated)
	ev.UserID = sess.UserID
	ev.SessionID = sessionID
	events.EmitAsync(r.emitter, ctx, ev)

	return res.Pair, nil
}

// compromised invalidates a session after a refresh anomaly and emits a
// reuse-detection event. Errors are logged; the caller's rejection stands
// regardless.
func (r *Registry) compromised(ctx context.Context, sess *domain.Session, reason string) {
	r.logger.Warn("refresh anomaly, invalidating session",
		zap.String("session_id", sess.ID),
		zap.String("user_id", sess.UserID),
		zap.String("reason", reason))
	metrics.ReuseDetections.Inc()
	if err := r.Invalidate(ctx, sess.ID); err != nil {
		r.logger.Error("failed to invalidate compromised session",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	ev := events.New(events.TypeRefreshReuse)
	ev.UserID = sess.UserID
	ev.SessionID = sess.ID
	ev.Metadata = map[string]string{"reason": reason}
	events.EmitAsync(r.emitter, ctx, ev)
}

// Invalidate ends the session and revokes its linked refresh token.
// Idempotent: invalidating an unknown or already-ended session succeeds.
//
// Ordering matters for the cache: an inactive tombstone is written before the
// durable end so concurrent cache-hit validations fail immediately, and again
// after it so no in-flight active write can outlast this call (cacheActive is
// the other half of that handshake). The token link is re-read after the end:
// a rotation that committed during this call relinks the session first, so
// the re-read catches the replacement and revokes it too.
func (r *Registry) Invalidate(ctx context.Context, sessionID string) error {
	now := r.now()

	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		if delErr := r.cache.Delete(ctx, sessionID); delErr != nil {
			r.logger.Warn("session cache delete failed", zap.String("session_id", sessionID), zap.Error(delErr))
		}
		return nil
	}

	r.cacheTombstone(ctx, sess)

	if sess.IsActive {
		if err := r.sessions.End(ctx, sessionID, now); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
	}

	tokenIDs := []string{sess.RefreshTokenID}
	if cur, err := r.sessions.GetByID(ctx, sessionID); err == nil && cur != nil && cur.RefreshTokenID != sess.RefreshTokenID {
		tokenIDs = append(tokenIDs, cur.RefreshTokenID)
	}
	for _, id := range tokenIDs {
		if id == "" {
			continue
		}
		if err := r.issuer.RevokeByID(ctx, id); err != nil {
			r.logger.Error("failed to revoke refresh token for ended session",
				zap.String("session_id", sessionID),
				zap.String("token_id", id),
				zap.Error(err))
		}
	}

	r.cacheTombstone(ctx, sess)
	return nil
}

// InvalidateAllForUser ends every active session the user holds, except the
// one named by exceptSessionID (empty means no exception). Returns how many
// sessions were invalidated.
func (r *Registry) InvalidateAllForUser(ctx context.Context, userID, exceptSessionID string) (int, error) {
	active, err := r.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	var firstErr error
	for _, s := range active {
		if s.ID == exceptSessionID {
			continue
		}
		if err := r.Invalidate(ctx, s.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		count++
	}
	if count > 0 {
		r.logger.Info("invalidated user sessions",
			zap.String("user_id", userID), zap.Int("count", count))
		ev := events.New(events.TypeSessionsInvalidated)
		ev.UserID = userID
		ev.Metadata = map[string]string{"count": strconv.Itoa(count)}
		events.EmitAsync(r.emitter, ctx, ev)
	}
	return count, firstErr
}

// ListForUser returns summaries of the user's active sessions, oldest first,
// flagging the caller's own session.
func (r *Registry) ListForUser(ctx context.Context, userID, currentSessionID string) ([]domain.Summary, error) {
	active, err := r.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Summary, 0, len(active))
	for _, s := range active {
		out = append(out, s.Summarize(currentSessionID))
	}
	return out, nil
}

// SweepExpiredSessions ends expired durable sessions and drops stale cache
// entries. Returns how many durable sessions were ended.
func (r *Registry) SweepExpiredSessions(ctx context.Context) (int64, error) {
	now := r.now()
	stale, err := r.cache.ScanExpired(ctx, now)
	if err != nil {
		r.logger.Warn("session cache scan failed", zap.Error(err))
	}
	for _, id := range stale {
		if err := r.cache.Delete(ctx, id); err != nil {
			r.logger.Warn("session cache delete failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	ended, err := r.sessions.SweepExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if ended > 0 || len(stale) > 0 {
		r.logger.Info("session sweep complete",
			zap.Int64("ended", ended), zap.Int("cache_evicted", len(stale)))
	}
	return ended, nil
}
