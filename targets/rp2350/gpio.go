//go:build rp2350

package main

import (
	"errors"
	"machine"

	"catprotect/core"
)

// The RP2350B exposes GPIO0-GPIO47
const numGPIO = 48

var errBadPin = errors.New("invalid GPIO pin")

// RPGPIODriver implements core.GPIODriver for the RP2350.
type RPGPIODriver struct {
	configured [numGPIO]bool
}

// NewRPGPIODriver creates a new RP2350 GPIO driver
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

func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d *RPGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPulldown)
}

// SetPin configures the pin as an output on first use
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

// GetPin reads the pin; unconfigured pins read low
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	if pin >= numGPIO {
		return false, errBadPin
	}
	if !d.configured[pin] {
		return false, nil
	}
	return machine.Pin(pin).Get(), nil
}
