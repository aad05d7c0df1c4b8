package discount

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies the current instant. Everything that decides whether a
// discount is still active reads time through a Clock so the server sweep,
// the read-path reset and the cart reconciler agree on "now".
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock is a manually driven Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ComputeExpiry returns now plus the offset as whole seconds since the epoch.
func ComputeExpiry(now time.Time, days, hours, minutes int) int64 {
	offset := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute
	return now.Add(offset).Unix()
}

// IsExpired reports whether a discount expiry has passed. An expiry of 0
// means the item carries no discount and is always reported as expired.
func IsExpired(expiry, now int64) bool {
	if expiry == 0 {
		return true
	}
	return now >= expiry
}

// Active reports whether a discount descriptor should be applied at now.
func Active(percent int, expiry, now int64) bool {
	return percent > 0 && !IsExpired(expiry, now)
}

type Countdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Remaining decomposes the time left until expiry. The boolean is false once
// the discount has expired (or never existed).
func Remaining(expiry, now int64) (Countdown, bool) {
	if IsExpired(expiry, now) {
		return Countdown{}, false
	}

	left := expiry - now
	return Countdown{
		Days:    left / 86400,
		Hours:   left % 86400 / 3600,
		Minutes: left % 3600 / 60,
		Seconds: left % 60,
	}, true
}

func (c Countdown) String() string {
	return fmt.Sprintf("%dd %02dh %02dm %02ds", c.Days, c.Hours, c.Minutes, c.Seconds)
}
