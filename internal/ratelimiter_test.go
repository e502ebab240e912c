package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Second)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"), "keys are independent")

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("a"))
}

func TestRateLimiterForget(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	assert.True(t, limiter.Allow("conn"))
	assert.False(t, limiter.Allow("conn"))
	limiter.Forget("conn")
	assert.True(t, limiter.Allow("conn"))
}

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow("x"))
	nilLimiter.Forget("x")

	off := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		assert.True(t, off.Allow("x"))
	}
}
