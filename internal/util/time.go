package util

import (
	"sync"
	"time"
)

const SecondsPerDay = 24 * 60 * 60

// Clock supplies "now" to every timestamped operation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at the given unix second.
func NewManualClock(unix int64) *ManualClock {
	return &ManualClock{now: time.Unix(unix, 0).UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to the given unix second.
func (c *ManualClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0).UTC()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// DaysToSeconds converts a rule duration into seconds.
func DaysToSeconds(days uint32) int64 {
	return int64(days) * SecondsPerDay
}

// TimeRemaining returns expiresAt-now, or 0 once expired.
func TimeRemaining(now, expiresAt int64) int64 {
	if now >= expiresAt {
		return 0
	}
	return expiresAt - now
}
