package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = "id, user_id, refresh_token_id, ip_address, user_agent, created_at, last_activity_at, expires_at, ended_at, is_active"

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM user_sessions WHERE id = $1", id)
	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByRefreshTokenID returns the active session linked to the given refresh
// token, or nil if none. Used to resolve the owning session for token-only
// refresh calls.
func (r *PostgresRepository) GetByRefreshTokenID(ctx context.Context, refreshTokenID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM user_sessions WHERE refresh_token_id = $1 AND is_active", refreshTokenID)
	return scanSession(row)
}

// ListActiveByUser returns the user's active sessions ordered oldest first.
// Returns an error only on database failures.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM user_sessions WHERE user_id = $1 AND is_active ORDER BY created_at ASC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, refresh_token_id, ip_address, user_agent, created_at, last_activity_at, expires_at, ended_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, nullString(s.RefreshTokenID), nullString(s.IPAddress), nullString(s.UserAgent),
		s.CreatedAt, s.LastActivityAt, s.ExpiresAt, nullTime(s.EndedAt), s.IsActive)
	return err
}

// End marks the session inactive and records ended_at. Already-ended sessions
// are left untouched, keeping the first end time.
func (r *PostgresRepository) End(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sessions SET is_active = FALSE, ended_at = $2 WHERE id = $1 AND is_active",
		id, at)
	return err
}

// UpdateLastActivity sets the session's activity timestamp. Best-effort for
// callers; a lost update under races is acceptable.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sessions SET last_activity_at = $2 WHERE id = $1",
		id, at)
	return err
}

// UpdateRefreshToken points the session at its rotated refresh token and
// bumps activity in the same statement.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, sessionID, refreshTokenID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sessions SET refresh_token_id = $2, last_activity_at = $3 WHERE id = $1",
		sessionID, refreshTokenID, at)
	return err
}

// SweepExpired ends active sessions past expiry.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE user_sessions SET is_active = FALSE, ended_at = $1 WHERE is_active AND expires_at < $1",
		now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSessionRows(rows *sql.Rows) (*domain.Session, error) {
	return scanInto(rows)
}

func scanInto(sc scanner) (*domain.Session, error) {
	var s domain.Session
	var refreshTokenID, ip, agent sql.NullString
	var lastActivity, endedAt sql.NullTime
	err := sc.Scan(&s.ID, &s.UserID, &refreshTokenID, &ip, &agent,
		&s.CreatedAt, &lastActivity, &s.ExpiresAt, &endedAt, &s.IsActive)
	if err != nil {
		return nil, err
	}
	s.RefreshTokenID = refreshTokenID.String
	s.IPAddress = ip.String
	s.UserAgent = agent.String
	if lastActivity.Valid {
		s.LastActivityAt = lastActivity.Time
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
