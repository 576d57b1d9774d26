// Package motion debounces a PIR motion sensor.
package motion

import "catprotect/core"

// Status is the sensor state reported to the listener.
type Status uint8

const (
	Uninitialized Status = iota // Update never called
	Stabilizing                 // waiting for the sensor to settle after power-up
	Idle                        // armed
	Alarm                       // motion seen, waiting for it to stop
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stabilizing:
		return "stabilizing"
	case Idle:
		return "idle"
	case Alarm:
		return "alarm"
	}
	return "unknown"
}

// DefaultIdleMS is how long the sensor must stay low before it is armed.
// It covers both power-up settling and re-arming after an alarm.
const DefaultIdleMS = 20000

// Probe reads the raw sensor output.
type Probe interface {
	Active() bool
}

// Listener is told about every status change.
type Listener interface {
	MotionChanged(now uint32, s Status)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(now uint32, s Status)

func (f ListenerFunc) MotionChanged(now uint32, s Status) { f(now, s) }

// Sensor is polled from the main loop.
type Sensor struct {
	probe    Probe
	idle     uint32 // ticks
	listener Listener

	status    Status
	lastState bool
	lastEvent core.Delta
}

// NewSensor returns a sensor that arms after idleMS of inactivity.
func NewSensor(probe Probe, idleMS uint32) *Sensor {
	if idleMS == 0 {
		idleMS = DefaultIdleMS
	}
	return &Sensor{probe: probe, idle: core.TimerFromMS(idleMS)}
}

// SetListener installs l, replacing any previous listener.
func (s *Sensor) SetListener(l Listener) {
	s.listener = l
}

// Status returns the current status.
func (s *Sensor) Status() Status {
	return s.status
}

// Update samples the probe and advances the state machine.
func (s *Sensor) Update(now uint32) {
	switch s.status {
	case Uninitialized:
		s.lastState = s.probe.Active()
		s.lastEvent.Start(now)
		s.setStatus(Stabilizing, now)
	case Idle:
		if s.probe.Active() {
			s.lastState = true
			s.lastEvent.Start(now)
			s.setStatus(Alarm, now)
		}
	case Stabilizing, Alarm:
		active := s.probe.Active()
		if active != s.lastState {
			s.lastEvent.Start(now)
			s.lastState = active
		} else if !active && s.lastEvent.Elapsed(now) >= s.idle {
			s.setStatus(Idle, now)
		}
	}
}

func (s *Sensor) setStatus(status Status, now uint32) {
	if s.status == status {
		return
	}
	s.status = status
	core.RecordEvent(core.EvtMotion, uint8(status), now, 0, 0)
	if s.listener != nil {
		s.listener.MotionChanged(now, status)
	}
}
