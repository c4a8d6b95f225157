package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "notes:login:attempts:"

// LoginLimiter counts failed logins per username in a fixed Redis window.
// A nil limiter, or one with maxAttempts <= 0, never throttles.
type LoginLimiter struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
	logger      *zap.Logger
}

// NewLoginLimiter returns a limiter backed by client.
func NewLoginLimiter(client redis.Cmdable, maxAttempts int, window time.Duration, logger *zap.Logger) *LoginLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginLimiter{client: client, maxAttempts: maxAttempts, window: window, logger: logger}
}

// Allowed reports whether username may attempt a login. Redis failures allow the attempt.
func (l *LoginLimiter) Allowed(ctx context.Context, username string) bool {
	if l.disabled() {
		return true
	}
	count, err := l.client.Get(ctx, key(username)).Int()
	if err == redis.Nil {
		return true
	}
	if err != nil {
		l.logger.Warn("login limiter unavailable", zap.Error(err))
		return true
	}
	return count < l.maxAttempts
}

// RecordFailure increments the failure counter, starting the window on the first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username string) {
	if l.disabled() {
		return
	}
	k := key(username)
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		l.logger.Warn("record login failure", zap.Error(err))
		return
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			l.logger.Warn("set login window", zap.Error(err))
		}
	}
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username string) {
	if l.disabled() {
		return
	}
	if err := l.client.Del(ctx, key(username)).Err(); err != nil {
		l.logger.Warn("reset login failures", zap.Error(err))
	}
}

func (l *LoginLimiter) disabled() bool {
	return l == nil || l.client == nil || l.maxAttempts <= 0
}

func key(username string) string {
	return keyPrefix + strings.ToLower(username)
}
