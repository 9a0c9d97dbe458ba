package http

import (
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

// RateLimiter is a token bucket limiter keyed by client. Idle buckets are pruned after ttl.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	burst      float64
	refillRate float64
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter constructs a limiter allowing burst requests, refilled at refillPerSecond.
func NewRateLimiter(burst int, refillPerSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		burst:      float64(burst),
		refillRate: refillPerSecond,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if ttl > 0 {
		go rl.pruneLoop()
	}

	return rl
}

// Allow consumes a token for key if one is available.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, last: now}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(rl.burst, b.tokens+elapsed*rl.refillRate)
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Stop ends the background pruning. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) pruneLoop() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.pruneStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) pruneStale() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
