//go:build rp2350

package main

import (
	"errors"
	"machine"

	"catprotect/core"
)

var (
	errBadBus  = errors.New("software spi: unknown bus")
	errBadMode = errors.New("software spi: invalid mode")
	errHandle  = errors.New("software spi: invalid handle")
)

// softBusPins lists the GPIO-driven buses. Bus 0 uses the Pico 2 SPI0
// header pins so a card socket wired for hardware SPI works unchanged.
var softBusPins = [...]struct{ sclk, mosi, miso machine.Pin }{
	0: {sclk: machine.GPIO18, mosi: machine.GPIO19, miso: machine.GPIO16},
	1: {sclk: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO12},
}

// softSPIDriver implements core.SPIDriver by bit-banging GPIO.
type softSPIDriver struct {
	clock hwClock
	buses [len(softBusPins)]*softSPIBus
}

// softSPIBus holds configuration for one bit-banged bus
type softSPIBus struct {
	sclk machine.Pin
	mosi machine.Pin
	miso machine.Pin

	// Microseconds between clock edges; zero runs flat out
	halfPeriodUS uint32

	cpol bool // clock idles high
	cpha bool // sample on the second edge
}

func newSoftSPIDriver(clock hwClock) *softSPIDriver {
	return &softSPIDriver{clock: clock}
}

// ConfigureBus sets up the pins on first use; later calls only change
// timing and mode so the handle stays valid.
func (d *softSPIDriver) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	if int(cfg.BusID) >= len(softBusPins) {
		return nil, errBadBus
	}
	if cfg.Mode > 3 {
		return nil, errBadMode
	}
	bus := d.buses[cfg.BusID]
	if bus == nil {
		pins := softBusPins[cfg.BusID]
		bus = &softSPIBus{sclk: pins.sclk, mosi: pins.mosi, miso: pins.miso}
		bus.sclk.Configure(machine.PinConfig{Mode: machine.PinOutput})
		bus.mosi.Configure(machine.PinConfig{Mode: machine.PinOutput})
		bus.miso.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		d.buses[cfg.BusID] = bus
	}

	bus.halfPeriodUS = 0
	if cfg.Rate > 0 && cfg.Rate < 500000 {
		bus.halfPeriodUS = 500000 / cfg.Rate
	}
	bus.cpol = cfg.Mode&2 != 0
	bus.cpha = cfg.Mode&1 != 0
	bus.sclk.Set(bus.cpol)
	bus.mosi.High()
	return bus, nil
}

func (d *softSPIDriver) Transfer(handle interface{}, tx, rx []byte) error {
	bus, ok := handle.(*softSPIBus)
	if !ok {
		return errHandle
	}
	for i := range tx {
		b := d.transferByte(bus, tx[i])
		if i < len(rx) {
			rx[i] = b
		}
	}
	return nil
}

func (d *softSPIDriver) TransferByte(handle interface{}, b byte) (byte, error) {
	bus, ok := handle.(*softSPIBus)
	if !ok {
		return 0, errHandle
	}
	return d.transferByte(bus, b), nil
}

// transferByte shifts one byte MSB first
func (d *softSPIDriver) transferByte(bus *softSPIBus, tx byte) byte {
	var rx byte
	for bit := 7; bit >= 0; bit-- {
		bus.mosi.Set(tx&(1<<bit) != 0)
		if !bus.cpha && bus.miso.Get() {
			rx |= 1 << bit
		}
		bus.sclk.Set(!bus.cpol)
		d.wait(bus)
		if bus.cpha && bus.miso.Get() {
			rx |= 1 << bit
		}
		bus.sclk.Set(bus.cpol)
		d.wait(bus)
	}
	return rx
}

func (d *softSPIDriver) wait(bus *softSPIBus) {
	if bus.halfPeriodUS != 0 {
		core.DelayUS(d.clock, bus.halfPeriodUS)
	}
}
