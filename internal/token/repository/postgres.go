package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/token/domain"
)

// ErrAlreadyRotated is returned by Rotate when the presented token was
// revoked or rotated by a concurrent caller.
var ErrAlreadyRotated = errors.New("refresh token already rotated")

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = "id, user_id, token, expires_at, created_at, revoked_at, last_used_at"

// GetByHash returns the token whose stored hash matches, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM refresh_tokens WHERE token = $1", tokenHash)
	return scanToken(row)
}

// Create persists the refresh token. The token must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt, nullTime(t.RevokedAt), nullTime(t.LastUsedAt))
	return err
}

// Rotate revokes the old token and inserts its replacement in one transaction.
// The revoke guards on revoked_at IS NULL: if a concurrent rotation got there
// first, no row is updated and ErrAlreadyRotated is returned without creating
// the replacement.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID string, usedAt time.Time, replacement *domain.RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2, last_used_at = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		oldID, usedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyRotated
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		replacement.ID, replacement.UserID, replacement.TokenHash, replacement.ExpiresAt, replacement.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Revoke marks the token with the given id as revoked. Already-revoked and
// unknown tokens are a successful no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL",
		id, at)
	return err
}

// RevokeAllForUser revokes every non-revoked token owned by the user and
// returns how many were revoked.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL",
		userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepExpired deletes tokens past expiry or revoked before retentionCutoff.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time, retentionCutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $2)",
		now, retentionCutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanToken(row *sql.Row) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	var revokedAt, lastUsedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &revokedAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.RevokedAt = timePtr(revokedAt)
	t.LastUsedAt = timePtr(lastUsedAt)
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
