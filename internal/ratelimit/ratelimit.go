package ratelimit

import (
	"context"
	"time"

	"mitra-ai/internal/config"
	"mitra-ai/internal/logger"
)

// Limiter decides whether a caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// New returns a Redis fixed-window limiter when REDIS_ADDR is configured
// and an in-process limiter otherwise
func New(cfg config.RateLimitConfig) (Limiter, func() error, error) {
	if cfg.RedisAddr != "" {
		l, err := NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.Prefix, cfg.Limit, cfg.Window)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.WithField("addr", cfg.RedisAddr).Info("Using Redis rate limiter")
		return l, l.Close, nil
	}

	l, err := NewLocalLimiter(cfg.Limit, cfg.Window)
	if err != nil {
		return nil, nil, err
	}
	logger.Log.Info("Using in-process rate limiter")
	return l, func() error { return nil }, nil
}

func windowOrDefault(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Minute
	}
	return window
}
