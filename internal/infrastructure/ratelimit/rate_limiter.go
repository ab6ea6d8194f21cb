package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionAPI         = "api"
)

// Limit is a token bucket refilled at PerMinute tokens a minute.
type Limit struct {
	PerMinute int
	Burst     int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key and action.
type RateLimiter struct {
	limits   map[string]Limit
	fallback Limit
	entries  map[string]*entry
	mutex    sync.Mutex
	now      func() time.Time
}

func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	return &RateLimiter{
		limits:   limits,
		fallback: Limit{PerMinute: 60, Burst: 20},
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow consumes a token for key/action. When the bucket is empty it
// reports how long until the next token.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := rl.now()
	limiter := rl.limiter(key, action, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

func (rl *RateLimiter) limiter(key, action string, now time.Time) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	id := key + ":" + action
	e, ok := rl.entries[id]
	if !ok {
		l, found := rl.limits[action]
		if !found {
			l = rl.fallback
		}
		if l.Burst <= 0 {
			l.Burst = l.PerMinute
		}
		e = &entry{limiter: rate.NewLimiter(rate.Limit(float64(l.PerMinute)/60), l.Burst)}
		rl.entries[id] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for id, e := range rl.entries {
		if now.Sub(e.lastSeen) > maxIdle {
			delete(rl.entries, id)
		}
	}
}

// StartCleanupRoutine runs Cleanup every interval until ctx ends.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			}
		}
	}()
}
