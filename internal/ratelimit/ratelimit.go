package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces requests against the storefront.
type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// DelayLimiter enforces a minimum gap between consecutive actions, with
// optional jitter between min and max to avoid a fixed request cadence.
type DelayLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

// New builds a limiter with a fixed delay (no jitter).
func New(delay time.Duration) *DelayLimiter {
	return NewWithJitter(delay, delay)
}

// NewWithJitter builds a limiter drawing each gap uniformly from [min, max].
func NewWithJitter(min, max time.Duration) *DelayLimiter {
	if max < min {
		max = min
	}
	return &DelayLimiter{
		minDelay: min,
		maxDelay: max,
	}
}

// Wait blocks until the gap since the last action reaches the configured
// delay, or the context is cancelled.
func (r *DelayLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

// SetDelay adjusts the delay range.
func (r *DelayLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	if max < min {
		max = min
	}
	r.maxDelay = max
}

func (r *DelayLimiter) nextDelay() time.Duration {
	if r.minDelay >= r.maxDelay {
		return r.minDelay
	}
	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(rand.Int63n(int64(delta)))
}
