package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is a per-key token bucket held in process memory.
// Each key may burst up to limit and refills at limit per window.
// Keys idle for a full window have refilled completely and are dropped.
type LocalLimiter struct {
	limit  int
	every  rate.Limit
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	limiters  map[string]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates an in-process limiter
func NewLocalLimiter(limit int, window time.Duration) (*LocalLimiter, error) {
	if limit <= 0 {
		return nil, errors.New("rate limiter requires a positive limit")
	}
	window = windowOrDefault(window)
	return &LocalLimiter{
		limit:    limit,
		every:    rate.Every(window / time.Duration(limit)),
		window:   window,
		now:      time.Now,
		limiters: make(map[string]*localBucket),
	}, nil
}

// Allow consumes one token for key if available
func (l *LocalLimiter) Allow(ctx context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	b, ok := l.limiters[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.every, l.limit)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets untouched for a window. A fresh bucket behaves the same.
func (l *LocalLimiter) sweep(now time.Time) {
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}
