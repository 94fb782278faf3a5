package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter keeps one token bucket per tenant for chat turns.
type MessageRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*tenantLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter allows perMinute chat turns per tenant with the given burst.
// perMinute <= 0 disables limiting.
func NewMessageRateLimiter(perMinute float64, burst int) *MessageRateLimiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &MessageRateLimiter{
		limiters: make(map[string]*tenantLimiter),
		rate:     r,
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow consumes one token for tenantID if available.
func (rl *MessageRateLimiter) Allow(tenantID string) bool {
	if rl.rate == rate.Inf {
		return true
	}
	rl.mu.Lock()
	tl, ok := rl.limiters[tenantID]
	if !ok {
		tl = &tenantLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[tenantID] = tl
	}
	tl.lastSeen = time.Now()
	rl.mu.Unlock()

	return tl.limiter.Allow()
}

// WaitTime returns how long tenantID has to wait for the next token.
func (rl *MessageRateLimiter) WaitTime(tenantID string) time.Duration {
	rl.mu.Lock()
	tl, ok := rl.limiters[tenantID]
	rl.mu.Unlock()
	if !ok {
		return 0
	}
	r := tl.limiter.Reserve()
	defer r.Cancel()
	return r.Delay()
}

// Reset drops rate limit state for a tenant.
func (rl *MessageRateLimiter) Reset(tenantID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, tenantID)
}

// Run removes idle buckets until ctx is done.
func (rl *MessageRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *MessageRateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, tl := range rl.limiters {
		if now.Sub(tl.lastSeen) > rl.idleTTL {
			delete(rl.limiters, id)
		}
	}
}

func (rl *MessageRateLimiter) ActiveTenants() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
