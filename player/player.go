// Package player streams a clip from the card to an output stage at a
// fixed sample rate, pacing each sample on a hardware timer overflow.
package player

import (
	"catprotect/core"
	"catprotect/hcdi"
	"catprotect/sdcard"
)

// OutputStage receives 12-bit sample values. SetValue prepares a value,
// Commit makes it audible.
type OutputStage interface {
	SetValue(v uint16)
	Commit()
	Disable()
}

// SampleTimer is a free-running timer whose overflow flag paces playback.
type SampleTimer interface {
	Start(hz uint32) error
	Overflowed() bool
	ClearOverflow()
	Stop()
}

// Streamer is the read side of *sdcard.Card used during playback.
type Streamer interface {
	StartContinuousRead(block uint32) sdcard.Status
	BeginFast()
	ReadFast4(dst *[4]byte) sdcard.Status
	Stop() sdcard.Status
	Descriptor() sdcard.Descriptor
	RecordError(code sdcard.ErrorCode)
}

// Claimer grants exclusive use of the bus the streamer sits on.
// *core.SPIDevice implements it.
type Claimer interface {
	Claim() error
	Release() error
}

// Watchdog is kicked while samples are flowing.
type Watchdog interface {
	Update()
}

// Stats describes the last Play call.
type Stats struct {
	Emitted     uint32 // samples sent to the output
	Underruns   uint32 // timer edges with an empty ring
	TopUps      uint32 // successful fast reads during the steady loop
	MaxBuffered int
}

// Player owns the ring buffer and drives one clip at a time.
type Player struct {
	stream Streamer
	out    OutputStage
	timer  SampleTimer
	clock  core.Clock
	cfg    Config

	claimer  Claimer
	watchdog Watchdog

	ring  ring
	busy  bool
	stats Stats

	aborted   bool
	abortCode sdcard.ErrorCode
}

// New validates cfg and allocates the ring buffer.
func New(s Streamer, out OutputStage, timer SampleTimer, clock core.Clock, cfg Config) (*Player, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Player{
		stream: s,
		out:    out,
		timer:  timer,
		clock:  clock,
		cfg:    cfg,
		ring:   newRing(cfg.Capacity),
	}, nil
}

// SetClaimer makes Play hold c for the whole call.
func (p *Player) SetClaimer(c Claimer) {
	p.claimer = c
}

// SetWatchdog makes Play kick w every Config.WatchdogEvery samples.
func (p *Player) SetWatchdog(w Watchdog) {
	p.watchdog = w
}

// Stats returns the counters of the last Play call.
func (p *Player) Stats() Stats {
	return p.stats
}

// PlayNamed looks name up in cat and plays it.
func (p *Player) PlayNamed(cat *hcdi.Catalog, name string) error {
	if cat == nil {
		return ErrNotFound
	}
	e := cat.Find(name)
	if e == nil {
		return ErrNotFound
	}
	return p.Play(e.StartBlock, e.SampleCount())
}

// cleanup undoes whatever Play set up, on every exit path.
type cleanup struct {
	p            *Player
	timerRunning bool
	streamOpen   bool
}

func (c *cleanup) run() {
	if c.timerRunning {
		c.p.timer.Stop()
	}
	if c.streamOpen {
		if st := c.p.stream.Stop(); st != sdcard.StatusReady {
			core.DebugPrintln("[PLAY] stop failed: " + c.p.stream.Descriptor().LastError.String())
			// The error that aborted playback is the one callers see
			if c.p.aborted {
				c.p.stream.RecordError(c.p.abortCode)
			}
		}
	}
	c.p.out.Disable()
}

// Play streams sampleCount+1 samples starting at startBlock. The cursor
// test is strictly greater-than, so one sample past sampleCount is played.
//
// A streamer error aborts without the fade-out; the timer, the read
// session and the output stage are released either way.
func (p *Player) Play(startBlock, sampleCount uint32) error {
	if p.busy {
		return ErrBusy
	}
	if p.claimer != nil {
		if err := p.claimer.Claim(); err != nil {
			return ErrBusy
		}
		defer p.claimer.Release()
	}
	p.busy = true
	defer func() { p.busy = false }()

	p.stats = Stats{}
	p.aborted = false
	core.RecordEvent(core.EvtPlayStart, 0, p.clock.Now(), startBlock, sampleCount)

	c := cleanup{p: p}
	defer c.run()

	for {
		st := p.stream.StartContinuousRead(startBlock)
		if st == sdcard.StatusReady {
			break
		}
		if st != sdcard.StatusWait {
			return p.fail(0)
		}
		core.DelayUS(p.clock, 1)
	}
	c.streamOpen = true

	if err := p.prefill(); err != nil {
		return err
	}

	if err := p.timer.Start(p.cfg.SampleRate); err != nil {
		return ErrTimer
	}
	c.timerRunning = true

	p.fadeIn()
	if err := p.steady(sampleCount); err != nil {
		return err
	}
	p.fadeOut()

	core.RecordEvent(core.EvtPlayDone, 0, p.clock.Now(), p.stats.Emitted, p.stats.Underruns)
	return nil
}

func (p *Player) prefill() error {
	r := &p.ring
	r.reset()
	p.stream.BeginFast()

	var four [4]byte
	for r.buffered < r.capacity() {
		switch p.stream.ReadFast4(&four) {
		case sdcard.StatusReady:
			r.push(&four, 0)
		case sdcard.StatusWait:
		default:
			return p.fail(0)
		}
	}
	p.stats.MaxBuffered = r.buffered
	return nil
}

// steady runs the timer-paced loop until the cursor passes sampleCount.
func (p *Player) steady(sampleCount uint32) error {
	r := &p.ring
	limit := r.capacity() - p.cfg.Margin
	every := p.cfg.WatchdogEvery

	var four [4]byte
	var cursor uint32
	for {
		for !p.timer.Overflowed() {
		}
		p.out.Commit()
		p.timer.ClearOverflow()

		if r.buffered > 0 {
			p.out.SetValue(r.pop(cursor) >> 4)
			cursor++
			if cursor > sampleCount {
				break
			}
			if p.watchdog != nil && every != 0 && cursor%every == 0 {
				p.watchdog.Update()
			}
		} else {
			p.stats.Underruns++
		}

		if r.buffered < limit {
			switch p.stream.ReadFast4(&four) {
			case sdcard.StatusReady:
				r.push(&four, cursor)
				p.stats.TopUps++
				if r.buffered > p.stats.MaxBuffered {
					p.stats.MaxBuffered = r.buffered
				}
			case sdcard.StatusWait:
			default:
				p.stats.Emitted = cursor
				return p.fail(cursor)
			}
		}
	}

	// The last prepared sample goes out on the next edge
	for !p.timer.Overflowed() {
	}
	p.out.Commit()
	p.timer.ClearOverflow()

	p.stats.Emitted = cursor
	return nil
}

func (p *Player) fadeIn() {
	for v := uint16(0); v < p.cfg.FadeLevel; v += p.cfg.FadeStep {
		p.out.SetValue(v)
		p.out.Commit()
		core.DelayUS(p.clock, p.cfg.FadeDelayUS)
	}
}

// fadeOut ramps from FadeLevel down to zero, zero included.
func (p *Player) fadeOut() {
	v := p.cfg.FadeLevel
	for {
		p.out.SetValue(v)
		p.out.Commit()
		core.DelayUS(p.clock, p.cfg.FadeDelayUS)
		if v == 0 {
			return
		}
		if v < p.cfg.FadeStep {
			v = 0
		} else {
			v -= p.cfg.FadeStep
		}
	}
}

func (p *Player) fail(cursor uint32) error {
	code := p.stream.Descriptor().LastError
	p.aborted, p.abortCode = true, code
	core.RecordEvent(core.EvtStreamError, uint8(code), p.clock.Now(), cursor, 0)
	return &StreamError{Code: code, Sample: cursor}
}
