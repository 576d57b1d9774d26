//go:build !tinygo

package core

import "time"

// HostClock derives ticks from the Go runtime's monotonic clock
// (regular Go implementation, used by the simulator and Linux targets)
type HostClock struct {
	base time.Time
}

// NewHostClock returns a clock whose zero is the moment of the call.
func NewHostClock() *HostClock {
	return &HostClock{base: time.Now()}
}

// Now returns microseconds since construction, truncated to 32 bits.
func (c *HostClock) Now() uint32 {
	return uint32(time.Since(c.base) / time.Microsecond)
}
