package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound provider calls with a token bucket.
// A nil *RateLimiter, or one built with a non-positive rate, never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained calls
// and bursts of up to burst calls.
//
// Example:
//
//	limiter := NewRateLimiter(80, 10) // WhatsApp Cloud API default tier
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow blocks until a token is available or the context is canceled.
func (r *RateLimiter) Allow(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}
