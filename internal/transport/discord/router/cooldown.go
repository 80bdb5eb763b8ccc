package router

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// cooldowns keeps one token bucket (burst 1, refill every cooldown) per
// command and user.
type cooldowns struct {
	mu        sync.Mutex
	entries   map[string]*cooldownEntry
	lastPrune time.Time
}

type cooldownEntry struct {
	every    time.Duration
	lim      *rate.Limiter
	lastUsed time.Time
}

func newCooldowns() *cooldowns {
	return &cooldowns{entries: map[string]*cooldownEntry{}}
}

// take consumes the user's slot for cmd. When the command is still cooling
// down it returns the remaining wait and consumes nothing.
func (c *cooldowns) take(cmd, userID string, every time.Duration, now time.Time) time.Duration {
	if every <= 0 {
		return 0
	}
	key := cmd + ":" + userID

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)

	e := c.entries[key]
	if e == nil || e.every != every {
		e = &cooldownEntry{every: every, lim: rate.NewLimiter(rate.Every(every), 1)}
		c.entries[key] = e
	}
	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return every
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	e.lastUsed = now
	return 0
}

// pruneLocked drops entries whose cooldown has fully elapsed; a fresh
// limiter behaves the same as an idle one.
func (c *cooldowns) pruneLocked(now time.Time) {
	if now.Sub(c.lastPrune) < time.Minute {
		return
	}
	c.lastPrune = now
	for k, e := range c.entries {
		if now.Sub(e.lastUsed) >= e.every {
			delete(c.entries, k)
		}
	}
}

func (c *cooldowns) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
