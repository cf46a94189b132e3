package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// MarkSeen records a first sighting of key and reports whether it was new.
// Used to drop webhook redeliveries: SETNX wins exactly once per key within
// the TTL window. Errors are returned so callers can decide to fail open.
func (r *Redis) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "seen", ttl).Result()
}

// Forget releases a previously recorded key. Callers use it to undo MarkSeen
// when processing fails, so a later redelivery of the same key goes through.
func (r *Redis) Forget(ctx context.Context, key string) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}
