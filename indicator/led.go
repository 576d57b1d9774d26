// Package indicator drives a two-colour status LED.
package indicator

import "catprotect/core"

type Color uint8

const (
	Red Color = iota
	Green
	Orange // red and green alternated every few milliseconds
)

type State uint8

const (
	Off State = iota
	On
	BlinkSlow
	BlinkFast
	FlashVerySlow // short flash every few seconds
)

// Timings in milliseconds
const (
	BlinkSlowMS   = 500
	BlinkFastMS   = 250
	FlashOnMS     = 25
	FlashPeriodMS = 10000
)

// LED is polled from the main loop with Update.
type LED struct {
	gpio  core.GPIODriver
	red   core.GPIOPin
	green core.GPIOPin

	color   Color
	state   State
	enabled bool
	blink   core.Periodic
}

// New configures both pins and turns the LED off.
func New(gpio core.GPIODriver, red, green core.GPIOPin) (*LED, error) {
	for _, pin := range []core.GPIOPin{red, green} {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
		if err := gpio.SetPin(pin, false); err != nil {
			return nil, err
		}
	}
	l := &LED{gpio: gpio, red: red, green: green}
	l.blink.Callback = l.onTimer
	return l, nil
}

// Color returns the current colour.
func (l *LED) Color() Color { return l.color }

// State returns the current state.
func (l *LED) State() State { return l.state }

// Lit reports whether the LED is currently switched on.
func (l *LED) Lit() bool { return l.enabled }

// Set changes colour and pattern. Setting the current combination again
// keeps the blink phase.
func (l *LED) Set(c Color, s State, now uint32) {
	if l.color == c && l.state == s {
		return
	}
	l.color = c
	l.state = s
	switch s {
	case Off:
		l.disable()
		l.blink.Stop()
	case On:
		l.enable()
		l.blink.Stop()
	case BlinkSlow:
		l.enable()
		l.blink.Start(core.TimerFromMS(BlinkSlowMS), now)
	case BlinkFast:
		l.enable()
		l.blink.Start(core.TimerFromMS(BlinkFastMS), now)
	case FlashVerySlow:
		l.disable()
		l.blink.Start(core.TimerFromMS(FlashPeriodMS), now)
	}
}

// Update runs the blink timer and the orange alternation.
func (l *LED) Update(now uint32) {
	l.blink.Check(now)
	if l.color == Orange && l.enabled {
		redPhase := core.TimerToMS(now)&0x07 < 4
		l.write(redPhase, !redPhase)
	}
}

func (l *LED) onTimer(now uint32) {
	if l.state != FlashVerySlow {
		if l.enabled {
			l.disable()
		} else {
			l.enable()
		}
		return
	}
	if l.enabled {
		l.disable()
		l.blink.Start(core.TimerFromMS(FlashPeriodMS), now)
	} else {
		l.enable()
		l.blink.Start(core.TimerFromMS(FlashOnMS), now)
	}
}

func (l *LED) enable() {
	l.enabled = true
	switch l.color {
	case Red:
		l.write(true, false)
	case Green:
		l.write(false, true)
	}
}

func (l *LED) disable() {
	l.enabled = false
	l.write(false, false)
}

func (l *LED) write(red, green bool) {
	// A failing LED pin is not worth stopping for
	_ = l.gpio.SetPin(l.red, red)
	_ = l.gpio.SetPin(l.green, green)
}
