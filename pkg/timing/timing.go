// Package timing provides the microsecond clock and the bounded busy-wait
// delay used by the transmit engine. The delay never yields to the
// scheduler; it is meant for sub-millisecond accuracy.
package timing

import "time"

// maxDelayStep is the longest single busy-wait, in microseconds. Longer
// delays loop in steps of this size.
const maxDelayStep = 5000

// Clock reads a monotonic microsecond timestamp.
type Clock interface {
	// Now returns microseconds since an arbitrary fixed origin.
	// It must never move backwards.
	Now() int64
}

// SystemClock is the Clock backed by the runtime monotonic clock.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock returns a SystemClock with the origin fixed at the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

func (c *SystemClock) Now() int64 {
	return int64(time.Since(c.origin) / time.Microsecond)
}

// Delay busy-waits for at least usecs microseconds on the given clock,
// looping in capped sub-delays. It returns immediately for usecs <= 0.
func Delay(c Clock, usecs int64) {
	for usecs > maxDelayStep {
		spin(c, maxDelayStep)
		usecs -= maxDelayStep
	}
	spin(c, usecs)
}

func spin(c Clock, usecs int64) {
	if usecs <= 0 {
		return
	}
	deadline := c.Now() + usecs
	for c.Now() < deadline {
	}
}
