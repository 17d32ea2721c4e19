package scheduler

import (
	"sync"
	"time"
)

// SimClock is a settable clock for replays. Its zero value reads as the zero time.
type SimClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewSimClock(start time.Time) *SimClock {
	return &SimClock{now: start}
}

func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *SimClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
