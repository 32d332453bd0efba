// Package ratelimit provides an injectable per-key rate limiting capability.
// The core never touches shared counters directly; it only sees the Limiter
// interface.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for a key may proceed.
type Limiter interface {
	Allow(key string) bool
}

const idleEvictAfter = 10 * time.Minute

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in memory and evicts buckets
// that have been idle past the eviction window.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

func NewMemoryLimiter(requestsPerSecond float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		limiters: make(map[string]*keyedLimiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// WithClock pins the eviction clock, used by tests.
func (m *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	m.now = now
	return m
}

func (m *MemoryLimiter) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictIdle(now)

	kl, exists := m.limiters[key]
	if !exists {
		kl = &keyedLimiter{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.limiters[key] = kl
	}
	kl.lastSeen = now
	return kl.limiter.Allow()
}

// Len reports the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}

// evictIdle drops buckets not seen within the eviction window. Called with
// the lock held.
func (m *MemoryLimiter) evictIdle(now time.Time) {
	for key, kl := range m.limiters {
		if now.Sub(kl.lastSeen) > idleEvictAfter {
			delete(m.limiters, key)
		}
	}
}

// Unlimited never refuses. Used when rate limiting is disabled in config.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
