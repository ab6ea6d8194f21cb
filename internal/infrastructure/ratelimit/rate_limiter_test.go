package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstThenBlocked(t *testing.T) {
	rl := NewRateLimiter(map[string]Limit{
		ActionSendMessage: {PerMinute: 30, Burst: 3},
	})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("user-1", ActionSendMessage)
		assert.True(t, ok, "message %d should pass", i)
	}

	ok, wait := rl.Allow("user-1", ActionSendMessage)
	assert.False(t, ok)
	assert.InDelta(t, 2*time.Second, wait, float64(100*time.Millisecond))

	// other users have their own bucket
	ok, _ = rl.Allow("user-2", ActionSendMessage)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, _ = rl.Allow("user-1", ActionSendMessage)
	assert.True(t, ok)
}

func TestRateLimiter_UnknownActionUsesFallback(t *testing.T) {
	rl := NewRateLimiter(nil)
	ok, _ := rl.Allow("1.2.3.4", "anything")
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("user-1", ActionAPI)
	assert.Len(t, rl.entries, 1)

	now = now.Add(2 * time.Hour)
	rl.Cleanup(time.Hour)
	assert.Empty(t, rl.entries)
}
