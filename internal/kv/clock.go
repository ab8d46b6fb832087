package kv

import (
	"sync"
	"time"
)

// Clock is a self-healing monotonic logical clock: every Next() call
// returns a value strictly greater than any timestamp previously returned
// or Observe()'d, even across replicas with faster local wall clocks.
type Clock struct {
	mu       sync.Mutex
	lastSeen int64
	now      func() int64
}

// NewClock creates a Clock backed by the system wall clock.
func NewClock() *Clock {
	return &Clock{now: func() int64 { return time.Now().UnixMilli() }}
}

// newClockWithSource is used by tests to control the wall clock deterministically.
func newClockWithSource(now func() int64) *Clock {
	return &Clock{now: now}
}

// Next returns the next timestamp: max(wallclock, lastSeen) + 1 if
// wallclock didn't strictly advance past lastSeen.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.now()
	if n > c.lastSeen {
		c.lastSeen = n
	} else {
		c.lastSeen++
	}
	return c.lastSeen
}

// Observe raises the clock's lastSeen watermark from a remotely observed
// timestamp, so a subsequent local Next() is guaranteed to exceed it.
func (c *Clock) Observe(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.lastSeen {
		c.lastSeen = ts
	}
}
