package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "blogify:login-failures:"

type RedisLimiter struct {
	rdb         goredis.UniversalClient
	maxAttempts int64
	window      time.Duration
}

func NewRedisLimiter(rdb goredis.UniversalClient, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, maxAttempts: int64(maxAttempts), window: window}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLimiter) Check(ctx context.Context, key string) error {
	n, err := l.rdb.Get(ctx, keyPrefix+key).Int64()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if n < l.maxAttempts {
		return nil
	}

	ttl, err := l.rdb.TTL(ctx, keyPrefix+key).Result()
	if err != nil {
		return err
	}
	if ttl < 0 {
		// counter lost its expiry; give it one so the client is not locked out forever
		if err := l.rdb.Expire(ctx, keyPrefix+key, l.window).Err(); err != nil {
			return err
		}
		ttl = l.window
	}
	return &LimitedError{RetryAfter: ttl}
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := keyPrefix + key
	var ttl *goredis.DurationCmd
	_, err := l.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, k)
		ttl = p.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return err
	}
	if ttl.Val() < 0 {
		return l.rdb.Expire(ctx, k, l.window).Err()
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, keyPrefix+key).Err()
}
