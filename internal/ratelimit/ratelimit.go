// Package ratelimit throttles outbound API calls with one token bucket per
// endpoint group, so a burst of searches cannot starve uploads or auth calls.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter hands out an independent limiter for each key.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a keyed limiter allowing rps requests per second per key with
// the given burst.
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.limiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.limiter(key).Wait(ctx)
}

// Keys returns the number of groups seen so far.
func (krl *KeyedRateLimiter) Keys() int {
	krl.mu.RLock()
	defer krl.mu.RUnlock()
	return len(krl.limiters)
}

func (krl *KeyedRateLimiter) limiter(key string) *rate.Limiter {
	krl.mu.RLock()
	l, ok := krl.limiters[key]
	krl.mu.RUnlock()
	if ok {
		return l
	}

	krl.mu.Lock()
	defer krl.mu.Unlock()

	// Another caller may have created it between the locks.
	if l, ok = krl.limiters[key]; ok {
		return l
	}
	l = rate.NewLimiter(krl.limit, krl.burst)
	krl.limiters[key] = l
	return l
}
