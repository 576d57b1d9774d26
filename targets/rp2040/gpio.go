//go:build rp2040

package main

import (
	"errors"
	"machine"

	"catprotect/core"
)

const numGPIO = 30

var errBadPin = errors.New("invalid GPIO pin")

// RPGPIODriver implements core.GPIODriver for the RP2040. Pins map
// directly to GPIO numbers. A fixed table keeps SetPin off the map path;
// the DAC latch is toggled once per sample.
type RPGPIODriver struct {
	configured [numGPIO]bool
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if pin >= numGPIO {
		return errBadPin
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: mode})
	d.configured[pin] = true
	return nil
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

// ConfigureInputPullUp configures a pin as an input with pull-up
func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

// ConfigureInputPullDown configures a pin as an input with pull-down
func (d *RPGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPulldown)
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if pin >= numGPIO {
		return errBadPin
	}
	if !d.configured[pin] {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	machine.Pin(pin).Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	if pin >= numGPIO {
		return false, errBadPin
	}
	if !d.configured[pin] {
		return false, nil
	}
	return machine.Pin(pin).Get(), nil
}
