package core

import "errors"

var ErrTimerRate = errors.New("timer: rate out of range")

// Timer frequency of the tick counter all Clock implementations report.
const (
	TimerFreq = 1000000 // 1MHz, matches the RP2040 microsecond timer
)

// Clock is a free-running 32-bit tick counter at TimerFreq.
// Wraparound is expected; compare ticks with subtraction only.
type Clock interface {
	Now() uint32
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32((uint64(us) * TimerFreq) / 1000000)
}

// TimerFromMS converts milliseconds to timer ticks
func TimerFromMS(ms uint32) uint32 {
	return uint32((uint64(ms) * TimerFreq) / 1000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32((uint64(ticks) * 1000000) / TimerFreq)
}

// TimerToMS converts timer ticks to milliseconds
func TimerToMS(ticks uint32) uint32 {
	return uint32((uint64(ticks) * 1000) / TimerFreq)
}

// Deadline is a wall-clock budget started at construction.
type Deadline struct {
	clock Clock
	start uint32
	ticks uint32
}

// NewDeadline starts a deadline of ms milliseconds on clock.
func NewDeadline(clock Clock, ms uint32) Deadline {
	return Deadline{clock: clock, start: clock.Now(), ticks: TimerFromMS(ms)}
}

// Expired reports whether more than the budget has elapsed.
func (d Deadline) Expired() bool {
	return d.clock.Now()-d.start > d.ticks
}

// DelayUS busy-waits for at least us microseconds.
func DelayUS(clock Clock, us uint32) {
	start := clock.Now()
	ticks := TimerFromUS(us)
	for clock.Now()-start < ticks {
	}
}

// Delta measures the time elapsed since Start.
type Delta struct {
	start uint32
}

// Start records now as the reference point.
func (d *Delta) Start(now uint32) {
	d.start = now
}

// Elapsed returns the ticks since Start.
func (d *Delta) Elapsed(now uint32) uint32 {
	return now - d.start
}

// Periodic fires every delay ticks while enabled. It is polled from the
// main loop with Check.
type Periodic struct {
	Callback func(now uint32)

	start   uint32
	delay   uint32
	enabled bool
}

// Start (re)arms the timer with a new delay.
func (p *Periodic) Start(delay, now uint32) {
	p.delay = delay
	p.start = now
	p.enabled = true
}

// Stop disarms the timer.
func (p *Periodic) Stop() {
	p.enabled = false
}

// Enabled reports whether the timer is armed.
func (p *Periodic) Enabled() bool {
	return p.enabled
}

// Check returns true and runs the callback if the timer fired.
func (p *Periodic) Check(now uint32) bool {
	if !p.enabled {
		return false
	}
	if now-p.start < p.delay {
		return false
	}
	p.start = now
	if p.Callback != nil {
		p.Callback(now)
	}
	return true
}

// StepClock is a deterministic clock that advances by Step on every read.
// Used for simulation and tests.
type StepClock struct {
	T    uint32
	Step uint32
}

// Now returns the current tick and advances the clock.
func (c *StepClock) Now() uint32 {
	t := c.T
	c.T += c.Step
	return t
}

// Advance moves the clock forward without reading it.
func (c *StepClock) Advance(ticks uint32) {
	c.T += ticks
}

// ClockTimer derives sample edges from a Clock for targets without a
// spare hardware timer. Edge n falls at n*TimerFreq/hz ticks after Start,
// so rounding never accumulates.
type ClockTimer struct {
	Clock Clock

	start   uint32
	hz      uint32
	edge    uint64
	running bool
}

// Start begins pacing at hz edges per second.
func (t *ClockTimer) Start(hz uint32) error {
	if hz == 0 || hz > TimerFreq {
		return ErrTimerRate
	}
	t.hz = hz
	t.edge = 1
	t.start = t.Clock.Now()
	t.running = true
	return nil
}

func (t *ClockTimer) due() uint32 {
	return t.start + uint32(t.edge*TimerFreq/uint64(t.hz))
}

// Overflowed reports whether the next edge has passed.
func (t *ClockTimer) Overflowed() bool {
	return t.running && int32(t.Clock.Now()-t.due()) >= 0
}

// ClearOverflow consumes one edge.
func (t *ClockTimer) ClearOverflow() {
	t.edge++
}

// Stop halts the timer; Overflowed stays false until the next Start.
func (t *ClockTimer) Stop() {
	t.running = false
}
