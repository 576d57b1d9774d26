// Package dac provides output stages for the player: an MCP4821 12-bit DAC
// on any drivers.SPI bus and a PWM pin.
package dac

import (
	"tinygo.org/x/drivers"

	"catprotect/core"
)

// MCP4821 control bits
const (
	mcpGain1x  = 0x2000 // 0 selects 2x gain
	mcpActive  = 0x1000 // 0 shuts the output down
	mcpDataMax = 0x0FFF
)

// Word returns the write command for value v at 1x gain.
func Word(v uint16) uint16 {
	return mcpGain1x | mcpActive | v&mcpDataMax
}

// MCP4821 drives the DAC with a separate LDAC latch pin so a value can be
// shifted in ahead of time and made audible on the timer edge.
type MCP4821 struct {
	bus   drivers.SPI
	gpio  core.GPIODriver
	cs    core.GPIOPin
	latch core.GPIOPin

	buf [2]byte
	err error
}

// NewMCP4821 configures the pins and shuts the output down.
func NewMCP4821(bus drivers.SPI, gpio core.GPIODriver, cs, latch core.GPIOPin) (*MCP4821, error) {
	for _, pin := range []core.GPIOPin{cs, latch} {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
		if err := gpio.SetPin(pin, true); err != nil {
			return nil, err
		}
	}
	d := &MCP4821{bus: bus, gpio: gpio, cs: cs, latch: latch}
	d.Disable()
	return d, d.Err()
}

// SetValue shifts v into the input register without changing the output.
func (d *MCP4821) SetValue(v uint16) {
	d.write(Word(v))
}

// Commit pulses LDAC, moving the input register to the output.
func (d *MCP4821) Commit() {
	d.check(d.gpio.SetPin(d.latch, false))
	d.check(d.gpio.SetPin(d.latch, true))
}

// Disable writes the shutdown command and latches it.
func (d *MCP4821) Disable() {
	d.write(0x0000)
	d.Commit()
}

// Err returns the first bus or pin error seen, if any.
func (d *MCP4821) Err() error {
	return d.err
}

func (d *MCP4821) write(word uint16) {
	d.buf[0] = byte(word >> 8)
	d.buf[1] = byte(word)
	d.check(d.gpio.SetPin(d.cs, false))
	d.check(d.bus.Tx(d.buf[:], nil))
	d.check(d.gpio.SetPin(d.cs, true))
}

func (d *MCP4821) check(err error) {
	if err != nil && d.err == nil {
		d.err = err
	}
}
