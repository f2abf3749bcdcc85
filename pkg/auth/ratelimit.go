package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// RateLimitError reports a rejected request and when the caller may retry.
type RateLimitError struct {
	Tier       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for tier %q, retry after %s", e.Tier, e.RetryAfter)
}

// Unwrap makes errors.Is(err, ErrTooManyRequests) hold.
func (e *RateLimitError) Unwrap() error { return ErrTooManyRequests }

// InProcessLimiter is a fixed-window limiter counting requests per
// subject and tier in memory. Limits are requests per minute; zero or
// less means unlimited.
type InProcessLimiter struct {
	tiers      map[string]int
	defaultRPM int
	now        func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastSweep time.Time
}

type counter struct {
	count    int
	windowAt time.Time
}

const window = time.Minute

// NewInProcessLimiter creates a limiter with per-tier requests-per-minute
// limits. Tiers not listed use defaultRPM.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		counters:   make(map[string]*counter),
	}
}

// Allow counts the request and rejects it with a *RateLimitError once
// the identity's tier limit for the current window is used up.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier()
	rpm, ok := l.tiers[tier]
	if !ok {
		rpm = l.defaultRPM
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= window {
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return &RateLimitError{Tier: tier, RetryAfter: c.windowAt.Add(window).Sub(now)}
	}
	return nil
}

// sweepLocked drops expired windows at most once per window so idle
// subjects do not accumulate.
func (l *InProcessLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < window {
		return
	}
	l.lastSweep = now
	for key, c := range l.counters {
		if now.Sub(c.windowAt) >= window {
			delete(l.counters, key)
		}
	}
}
