package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout counts failed logins per username.
type Lockout interface {
	// Locked reports whether the username has reached the failure threshold.
	Locked(ctx context.Context, username string) (bool, error)
	// RecordFailure increments the counter and reports whether the threshold is now reached.
	RecordFailure(ctx context.Context, username string) (bool, error)
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, username string) error
}

// LockoutConfig holds configuration for the failed-login limiter.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	// Window is both the counting window and the lockout duration.
	// Zero means the counter never expires.
	Window time.Duration
}

// RedisLockout is a Lockout backed by a Redis counter per username.
// The TTL is set on the first failure, so the window rolls from there.
type RedisLockout struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewRedisLockout creates a Redis-backed lockout limiter.
func NewRedisLockout(client redis.UniversalClient, cfg LockoutConfig) *RedisLockout {
	return &RedisLockout{redis: client, config: cfg}
}

func (l *RedisLockout) key(username string) string {
	return "orgadmin:lockout:" + strings.ToLower(username)
}

func (l *RedisLockout) active(username string) bool {
	return l.config.Enabled && l.config.Threshold > 0 && username != ""
}

// Locked implements Lockout.
func (l *RedisLockout) Locked(ctx context.Context, username string) (bool, error) {
	if !l.active(username) {
		return false, nil
	}
	count, err := l.redis.Get(ctx, l.key(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrLockoutUnavailable, err)
	}
	return count >= int64(l.config.Threshold), nil
}

// RecordFailure implements Lockout.
func (l *RedisLockout) RecordFailure(ctx context.Context, username string) (bool, error) {
	if !l.active(username) {
		return false, nil
	}

	key := l.key(username)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrLockoutUnavailable, err)
	}
	if count == 1 && l.config.Window > 0 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %w", ErrLockoutUnavailable, err)
		}
	}
	return count >= int64(l.config.Threshold), nil
}

// Reset implements Lockout.
func (l *RedisLockout) Reset(ctx context.Context, username string) error {
	if !l.active(username) {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLockoutUnavailable, err)
	}
	return nil
}

type nopLockout struct{}

func (nopLockout) Locked(context.Context, string) (bool, error)        { return false, nil }
func (nopLockout) RecordFailure(context.Context, string) (bool, error) { return false, nil }
func (nopLockout) Reset(context.Context, string) error                 { return nil }
