package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces operations at least interval apart. The first call passes immediately.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter. A non-positive interval disables limiting.
func New(interval time.Duration) *RateLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next operation may start, or until the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter lets every call through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}
