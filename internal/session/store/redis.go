package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
)

// RedisStore is a Redis-backed Store for multi-instance deployments.
// Entries carry a TTL matching the session expiry, so Redis itself evicts
// expired entries and ScanExpired has nothing to do.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a session store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session:"}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Get returns the cached session, or (nil, nil) on miss.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("session store: unmarshal: %w", err)
	}
	return &sess, nil
}

// Put stores the session with a TTL matching its expiry. Already-expired
// sessions are deleted instead of written.
func (s *RedisStore) Put(ctx context.Context, sess *domain.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.client.Del(ctx, s.key(sess.ID)).Err()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: marshal: %w", err)
	}
	return s.client.Set(ctx, s.key(sess.ID), data, ttl).Err()
}

// Delete removes the session from the cache. Deleting a missing entry is a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

// ScanExpired returns nil: Redis TTLs own expiry for this store.
func (s *RedisStore) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	return nil, nil
}
