package light

import (
	"sync/atomic"
	"time"
)

type clockAnchor struct {
	chainTime int64
	local     time.Time
}

// AnchoredClock is a time source anchored to the timestamp of the latest
// trusted header and advanced by locally elapsed monotonic time.
//
// The clock never goes backward, even when re-anchored to an older header
// timestamp.
type AnchoredClock struct {
	anchor atomic.Pointer[clockAnchor]
	last   atomic.Int64

	now func() time.Time
}

// Anchor re-anchors the clock to the given chain timestamp (in seconds).
func (c *AnchoredClock) Anchor(chainTime int64) {
	c.anchor.Store(&clockAnchor{
		chainTime: chainTime,
		local:     c.now(),
	})
}

// Now returns the current time in seconds since the unix epoch.
func (c *AnchoredClock) Now() int64 {
	a := c.anchor.Load()
	if a == nil {
		return c.last.Load()
	}

	t := a.chainTime + int64(c.now().Sub(a.local)/time.Second)
	for {
		last := c.last.Load()
		if t <= last {
			return last
		}
		if c.last.CompareAndSwap(last, t) {
			return t
		}
	}
}

// NewAnchoredClock creates a new clock anchored at the given chain time.
func NewAnchoredClock(chainTime int64) *AnchoredClock {
	return newAnchoredClock(chainTime, time.Now)
}

func newAnchoredClock(chainTime int64, now func() time.Time) *AnchoredClock {
	c := &AnchoredClock{now: now}
	c.Anchor(chainTime)
	return c
}
