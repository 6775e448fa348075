package lark

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting for API requests.
// It allows bursts up to the bucket size and refills at a steady rate.
// Safe for concurrent use: the parallel cell-fill workers share one limiter
// with the sequential pipeline.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond average rate
// with bursts up to burstSize.
func NewRateLimiter(requestsPerSecond float64, burstSize int) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burstSize),
		maxTokens:  float64(burstSize),
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// DefaultRateLimiter is tuned for the docx API, which throttles at low
// single-digit QPS per app. The burst matches the cell-fill concurrency.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(3.0, 5)
}

// Wait blocks until a request can be made without exceeding the rate, or
// until ctx is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.refill()

	if r.tokens < 1 {
		waitDuration := time.Duration((1 - r.tokens) / r.refillRate * float64(time.Second))
		r.mu.Unlock()
		select {
		case <-time.After(waitDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		r.refill()
	}

	r.tokens--
	r.mu.Unlock()
	return nil
}

// refill credits tokens for the time elapsed since the last refill.
// Caller holds the mutex.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now
}
