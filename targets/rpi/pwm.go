//go:build linux

package main

import (
	rpio "github.com/stianeikeland/go-rpio/v4"

	"catprotect/core"
)

// pwmCycle is the duty resolution. The PWM clock tops out at 9.6MHz, so
// 256 steps keep the carrier above the audio band.
const (
	pwmCycle    = 256
	pwmClockMax = 9600000
)

// rpiPWMDriver implements core.PWMDriver with the BCM PWM block. Only
// GPIO12/13/18/19 can carry PWM.
type rpiPWMDriver struct{}

func (rpiPWMDriver) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	p := rpio.Pin(pin)
	p.Pwm()
	freq := uint64(pwmClockMax)
	if us := core.TimerToUS(cycleTicks); us != 0 && uint64(pwmCycle)*1000000/uint64(us) < freq {
		freq = uint64(pwmCycle) * 1000000 / uint64(us)
	}
	p.Freq(int(freq))
	p.DutyCycle(0, pwmCycle)
	return cycleTicks, nil
}

func (rpiPWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	rpio.Pin(pin).DutyCycle(uint32(value), pwmCycle)
	return nil
}

func (rpiPWMDriver) GetMaxValue() uint32 {
	return pwmCycle - 1
}

func (rpiPWMDriver) DisablePWM(pin core.PWMPin) error {
	p := rpio.Pin(pin)
	p.DutyCycle(0, pwmCycle)
	p.Output()
	p.Low()
	return nil
}
