//go:build linux

package main

import (
	rpio "github.com/stianeikeland/go-rpio/v4"

	"catprotect/core"
)

// rpiGPIODriver implements core.GPIODriver on the BCM GPIO block through
// /dev/gpiomem.
type rpiGPIODriver struct{}

func (rpiGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	rpio.Pin(pin).Output()
	return nil
}

func (rpiGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return nil
}

func (rpiGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Input()
	p.PullDown()
	return nil
}

func (rpiGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if value {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

func (rpiGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	return rpio.Pin(pin).Read() == rpio.High, nil
}
