//go:build rp2040

package main

import (
	"errors"
	"machine"

	"catprotect/core"
)

// pwmTop is the duty range handed to the output stage. It equals the DAC
// full scale so a 12-bit sample maps straight onto a compare level.
const pwmTop = 4095

var errPWMPin = errors.New("pwm: pin not configured")

// slicer is the part of TinyGo's unexported PWM group type we use.
type slicer interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

var pwmSlices = [8]slicer{
	machine.PWM0, machine.PWM1, machine.PWM2, machine.PWM3,
	machine.PWM4, machine.PWM5, machine.PWM6, machine.PWM7,
}

type pwmChannel struct {
	slice   slicer
	channel uint8
}

// RP2040PWMDriver implements core.PWMDriver for the filtered-PWM audio
// output. The sample timer slice must not be handed out here.
type RP2040PWMDriver struct {
	pins map[core.PWMPin]pwmChannel
}

func NewRP2040PWMDriver() *RP2040PWMDriver {
	return &RP2040PWMDriver{pins: make(map[core.PWMPin]pwmChannel)}
}

func (d *RP2040PWMDriver) GetMaxValue() uint32 { return pwmTop }

// ConfigureHardwarePWM takes cycleTicks in core timer ticks. GPIO n
// belongs to slice (n/2)%8.
func (d *RP2040PWMDriver) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	s := pwmSlices[(pin>>1)&7]
	periodNS := uint64(core.TimerToUS(cycleTicks)) * 1000
	if err := s.Configure(machine.PWMConfig{Period: periodNS}); err != nil {
		return 0, err
	}
	ch, err := s.Channel(machine.Pin(pin))
	if err != nil {
		return 0, err
	}
	d.pins[pin] = pwmChannel{slice: s, channel: ch}
	return cycleTicks, nil
}

func (d *RP2040PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	c, ok := d.pins[pin]
	if !ok {
		return errPWMPin
	}
	c.slice.Set(c.channel, uint32(value)*c.slice.Top()/pwmTop)
	return nil
}

// DisablePWM parks the pin at zero duty between clips. TinyGo cannot hand
// the pin back to SIO, and the next clip commits to it again.
func (d *RP2040PWMDriver) DisablePWM(pin core.PWMPin) error {
	if c, ok := d.pins[pin]; ok {
		c.slice.Set(c.channel, 0)
	}
	return nil
}
