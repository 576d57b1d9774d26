// Package app wires the card, directory, player, motion sensor and status
// LED into the device behaviour: bring the card up once, then play the
// configured clip whenever the sensor raises an alarm.
package app

import (
	"errors"

	"catprotect/core"
	"catprotect/hcdi"
	"catprotect/indicator"
	"catprotect/motion"
	"catprotect/player"
	"catprotect/protocol"
	"catprotect/sdcard"
)

// Default polling period of the motion sensor
const DefaultSensorPollMS = 10

var ErrNotReady = errors.New("app: card not ready")

// Parts are the collaborators a target constructs and hands to New.
type Parts struct {
	Card     *sdcard.Card
	Player   *player.Player
	Sensor   *motion.Sensor
	LED      *indicator.LED
	Reporter *protocol.Reporter // optional
	Clock    core.Clock
}

// Device is the application state. It is driven from the main loop
// through Tick and never blocks except while a clip is playing.
type Device struct {
	Parts
	clip string

	catalog *hcdi.Catalog
	ready   bool
	alarm   bool // set by the listener, consumed by Tick
	plays   uint32

	sched      core.Scheduler
	sensorPoll core.Timer
	pollTicks  uint32
}

// New creates the device. clip is the directory name played on alarm.
func New(parts Parts, clip string) *Device {
	d := &Device{
		Parts:     parts,
		clip:      clip,
		pollTicks: core.TimerFromMS(DefaultSensorPollMS),
	}
	d.sensorPoll.Handler = d.pollSensor
	d.Sensor.SetListener(d)
	return d
}

// Catalog returns the directory read by Setup, nil before.
func (d *Device) Catalog() *hcdi.Catalog {
	return d.catalog
}

// Ready reports whether Setup succeeded.
func (d *Device) Ready() bool {
	return d.ready
}

// Plays returns the number of playback attempts.
func (d *Device) Plays() uint32 {
	return d.plays
}

// Setup brings the card up and reads the directory. The LED shows the
// outcome: fast red blink on failure, a short green flash every few
// seconds when armed.
func (d *Device) Setup() error {
	now := d.Clock.Now()
	d.Reporter.Boot(protocol.Version)

	desc, err := d.Card.BringUp()
	d.Reporter.BringUp(uint8(desc.LastError), uint8(desc.Type))
	if err != nil {
		core.DebugPrintln("[APP] card bring-up failed: " + err.Error())
		d.LED.Set(indicator.Red, indicator.BlinkFast, now)
		return err
	}

	cat, err := hcdi.Build(d.Card)
	if err != nil {
		d.Reporter.Catalog(uint8(d.Card.Descriptor().LastError), 0)
		core.DebugPrintln("[APP] directory failed: " + err.Error())
		d.LED.Set(indicator.Red, indicator.BlinkFast, now)
		return err
	}
	d.Reporter.Catalog(0, cat.Len())
	for e := cat.First(); e != nil; e = e.Next() {
		d.Reporter.Entry(e.StartBlock, e.Length, e.Name)
	}

	d.catalog = cat
	d.ready = true
	d.LED.Set(indicator.Green, indicator.FlashVerySlow, now)
	d.sensorPoll.WakeTime = now
	d.sched.Schedule(&d.sensorPoll)
	core.DebugPrintln("[APP] armed, " + core.Itoa(cat.Len()) + " clips")
	return nil
}

// MotionChanged implements motion.Listener.
func (d *Device) MotionChanged(now uint32, s motion.Status) {
	d.Reporter.Motion(uint8(s))
	if s == motion.Alarm {
		d.alarm = true
	}
}

func (d *Device) pollSensor(t *core.Timer) uint8 {
	d.Sensor.Update(d.sched.Now())
	t.WakeTime = d.sched.Now() + d.pollTicks
	return core.SF_RESCHEDULE
}

// Tick runs one pass of the main loop: poll the sensor when due, animate
// the LED and play the clip if an alarm was raised.
func (d *Device) Tick(now uint32) {
	d.sched.Dispatch(now)
	d.LED.Update(now)

	if !d.alarm {
		return
	}
	d.alarm = false
	if err := d.PlayClip(); err != nil {
		core.DebugPrintln("[APP] playback failed: " + err.Error())
	}
}

// PlayClip plays the configured clip now. The LED is orange while the
// clip plays and returns to the armed pattern afterwards.
func (d *Device) PlayClip() error {
	if !d.ready {
		return ErrNotReady
	}
	d.plays++
	d.LED.Set(indicator.Orange, indicator.On, d.Clock.Now())

	entry := d.catalog.Find(d.clip)
	if entry != nil {
		d.Reporter.PlayStart(entry.StartBlock, entry.SampleCount())
	}
	err := d.Player.PlayNamed(d.catalog, d.clip)

	stats := d.Player.Stats()
	var serr *player.StreamError
	switch {
	case err == nil:
		d.Reporter.PlayDone(stats.Emitted, stats.Underruns)
	case errors.As(err, &serr):
		d.Reporter.PlayError(uint8(serr.Code), serr.Sample)
	default:
		d.Reporter.PlayError(0, 0)
	}

	d.LED.Set(indicator.Green, indicator.FlashVerySlow, d.Clock.Now())
	return err
}
