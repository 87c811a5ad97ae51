package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix  = "admin:session:" // hash per browser: admin:session:{key} -> {token, refreshToken}
	defaultSessionTTL = 7 * 24 * time.Hour
)

// RedisStore keeps sessions in Redis hashes so every dashboard replica sees the
// same login state. The TTL slides forward on each read of a live session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl falls back to seven days.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("session"),
	}
}

func (r *RedisStore) Save(ctx context.Context, key string, s Session) error {
	if err := checkKey(key); err != nil {
		return err
	}

	redisKey := r.redisKey(key)

	// Overwrite semantics: drop the old hash and write what is present, atomically.
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKey)
	fields := make(map[string]any, 2)
	if s.AccessToken != "" {
		fields[FieldToken] = s.AccessToken
	}
	if s.RefreshToken != "" {
		fields[FieldRefreshToken] = s.RefreshToken
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, redisKey, fields)
		pipe.Expire(ctx, redisKey, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Read(ctx context.Context, key string) (Session, error) {
	if err := checkKey(key); err != nil {
		return Session{}, err
	}

	redisKey := r.redisKey(key)

	values, err := r.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	if len(values) == 0 {
		return Session{}, nil
	}

	if err := r.client.Expire(ctx, redisKey, r.ttl).Err(); err != nil {
		// The session is still usable; it simply will not slide this time.
		r.logger.Warn("Failed to extend session TTL", zap.Error(err))
	}

	return Session{
		AccessToken:  values[FieldToken],
		RefreshToken: values[FieldRefreshToken],
	}, nil
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (r *RedisStore) IsAuthenticated(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	n, err := r.client.HExists(ctx, r.redisKey(key), FieldToken).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n, nil
}

// Ping checks that Redis answers.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) redisKey(key string) string {
	return sessionKeyPrefix + key
}

var _ Store = (*RedisStore)(nil)
