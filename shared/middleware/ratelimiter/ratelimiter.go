package ratelimiter

import (
	"sync"
	"time"

	"github.com/itchan-dev/crosspost/shared/clock"
)

// bucket is a token bucket for one key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// KeyedRateLimiter keeps one token bucket per key. Buckets idle for longer
// than the expiration time are dropped by Sweep.
type KeyedRateLimiter struct {
	mu             sync.Mutex
	buckets        map[string]*bucket
	rate           float64 // tokens per second
	capacity       float64
	expirationTime time.Duration
	clock          clock.Clock
}

func New(rate, capacity float64, expirationTime time.Duration, clk clock.Clock) *KeyedRateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &KeyedRateLimiter{
		buckets:        make(map[string]*bucket),
		rate:           rate,
		capacity:       capacity,
		expirationTime: expirationTime,
		clock:          clk,
	}
}

// Allow takes a token for key if one is available.
func (l *KeyedRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Sweep drops buckets not used within the expiration time.
func (l *KeyedRateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.expirationTime {
			delete(l.buckets, key)
		}
	}
}

func (l *KeyedRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// PerMinute allows n requests a minute with bursts of n.
func PerMinute(n float64, clk clock.Clock) *KeyedRateLimiter {
	return New(n/60, n, time.Hour, clk)
}
