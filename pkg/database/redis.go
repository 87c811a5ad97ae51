// Package database opens the connections the dashboard depends on at start-up.
package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/config"
	"github.com/ekaya-inc/ekaya-admin/pkg/retry"
)

// NewRedisClient connects to the Redis that holds browser sessions.
// Returns nil, nil if Redis is not configured (host is empty); callers then
// fall back to the in-memory store. Transient dial failures are retried with
// backoff so the dashboard can start alongside a Redis that is still booting.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, retryCfg *retry.Config, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempt := 0
	err := retry.DoIfRetryable(ctx, retryCfg, func() error {
		attempt++
		err := client.Ping(ctx).Err()
		if err != nil {
			logger.Warn("Redis ping failed",
				zap.String("addr", cfg.Addr()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))
	return client, nil
}
