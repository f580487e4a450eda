package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	dErrors "arsenal/pkg/domain-errors"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultRetryStep = 50 * time.Millisecond
	defaultRetries   = 100
)

// Redis is a Locker shared across service instances, backed by redislock.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(rdb redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: redislock.New(rdb),
		ttl:    defaultLockTTL,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(defaultRetryStep), defaultRetries),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l, err := r.client.Obtain(ctx, "lock:"+key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "could not obtain lock for "+key)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "obtain lock")
	}
	defer func() {
		// Release uses a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) && r.logger != nil {
			r.logger.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
		}
	}()
	return fn(ctx)
}
