package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageRateLimiter_PerTenantBuckets(t *testing.T) {
	rl := NewMessageRateLimiter(1, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.Greater(t, rl.WaitTime("a"), 30*time.Second)

	assert.True(t, rl.Allow("b"), "another tenant has its own bucket")
	assert.Equal(t, 2, rl.ActiveTenants())

	rl.Reset("a")
	assert.True(t, rl.Allow("a"))
}

func TestMessageRateLimiter_Disabled(t *testing.T) {
	rl := NewMessageRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("a"))
	}
	assert.Equal(t, 0, rl.ActiveTenants())
	assert.Equal(t, time.Duration(0), rl.WaitTime("a"))
}

func TestMessageRateLimiter_SweepDropsIdleTenants(t *testing.T) {
	rl := NewMessageRateLimiter(60, 1)
	rl.Allow("a")

	rl.sweep(time.Now())
	assert.Equal(t, 1, rl.ActiveTenants())

	rl.sweep(time.Now().Add(11 * time.Minute))
	assert.Equal(t, 0, rl.ActiveTenants())
}
