// Package rate provides a token bucket rate limiter for controlling probe rates.
package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter. It supports both blocking
// (Wait) and non-blocking (Allow) modes. The bucket refills at `rate` tokens
// per second up to `burst` capacity.
type Limiter struct {
	rate   float64 // tokens per second
	burst  int     // bucket capacity
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// New creates a limiter with the given refill rate (tokens per second) and
// burst size. Invalid values are clamped to 1. The bucket starts full.
func New(rate float64, burst int) *Limiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait blocks until a token is available or the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		wait := l.waitDuration()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Allow reports whether an operation can proceed immediately, consuming one
// token if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance(time.Now())

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance(time.Now())
	return l.tokens
}

// Rate returns the refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// Reset refills the bucket to capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = float64(l.burst)
	l.last = time.Now()
}

// advance refills tokens for elapsed time. Caller must hold l.mu.
func (l *Limiter) advance(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.last = now
}

// waitDuration estimates how long until the next token becomes available.
func (l *Limiter) waitDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance(time.Now())

	if l.tokens >= 1 {
		return 0
	}

	needed := 1.0 - l.tokens
	return time.Duration(needed / l.rate * float64(time.Second))
}
