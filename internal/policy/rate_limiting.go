package policy

import (
	"sync"
	"time"
)

// RateLimiter applies a token bucket per key, e.g. per API route.
type RateLimiter struct {
	enabled bool
	// perSecond is both the bucket capacity and the refill rate
	perSecond int

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter returns a limiter; perSecond <= 0 disables it.
func NewRateLimiter(perSecond int) *RateLimiter {
	return &RateLimiter{
		enabled:   perSecond > 0,
		perSecond: perSecond,
		buckets:   make(map[string]*tokenBucket),
	}
}

func (l *RateLimiter) Enabled() bool {
	return l.enabled
}

func (l *RateLimiter) Name() string {
	return "rate_limiting"
}

// Allow takes a token for key at time now.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	if !l.enabled {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(l.perSecond), lastRefill: now}
		l.buckets[key] = b
	}
	l.refill(b, now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the whole tokens left for key, or -1 when unlimited.
func (l *RateLimiter) Remaining(key string, now time.Time) int {
	if !l.enabled {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return l.perSecond
	}
	l.refill(b, now)
	return int(b.tokens)
}

func (l *RateLimiter) refill(b *tokenBucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * float64(l.perSecond)
	if capacity := float64(l.perSecond); b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now
}
