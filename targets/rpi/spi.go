//go:build linux

package main

import (
	"github.com/pkg/errors"
	rpio "github.com/stianeikeland/go-rpio/v4"

	"catprotect/core"
)

// rpiSPIDriver implements core.SPIDriver on the BCM SPI controllers.
// go-rpio drives one controller at a time, so switching buses ends the
// active one first. Chip selects are plain GPIOs; the controller's own
// CE line is left unconnected.
type rpiSPIDriver struct {
	active *rpiBus
	buf    [1]byte
}

type rpiBus struct {
	dev  rpio.SpiDev
	mode core.SPIMode
	rate uint32
}

func (d *rpiSPIDriver) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	var dev rpio.SpiDev
	switch cfg.BusID {
	case 0:
		dev = rpio.Spi0
	case 1:
		dev = rpio.Spi1
	default:
		return nil, errors.Errorf("spi bus %d not available", cfg.BusID)
	}
	bus := &rpiBus{dev: dev, mode: cfg.Mode, rate: cfg.Rate}
	if d.active != nil && d.active.dev == dev {
		// Reconfiguring the active bus keeps its handle valid
		*d.active = *bus
		bus = d.active
		d.apply(bus)
		return bus, nil
	}
	if err := d.activate(bus); err != nil {
		return nil, err
	}
	return bus, nil
}

func (d *rpiSPIDriver) apply(bus *rpiBus) {
	rpio.SpiSpeed(int(bus.rate))
	rpio.SpiMode(uint8(bus.mode>>1), uint8(bus.mode&1))
}

func (d *rpiSPIDriver) activate(bus *rpiBus) error {
	if d.active == bus {
		return nil
	}
	if d.active != nil {
		rpio.SpiEnd(d.active.dev)
	}
	if err := rpio.SpiBegin(bus.dev); err != nil {
		return errors.Wrap(err, "spi begin")
	}
	d.active = bus
	d.apply(bus)
	return nil
}

func (d *rpiSPIDriver) handle(h interface{}) (*rpiBus, error) {
	bus, ok := h.(*rpiBus)
	if !ok {
		return nil, errors.New("invalid SPI bus handle")
	}
	return bus, d.activate(bus)
}

func (d *rpiSPIDriver) Transfer(h interface{}, tx, rx []byte) error {
	if _, err := d.handle(h); err != nil {
		return err
	}
	copy(rx, tx)
	rpio.SpiExchange(rx)
	return nil
}

func (d *rpiSPIDriver) TransferByte(h interface{}, b byte) (byte, error) {
	if _, err := d.handle(h); err != nil {
		return 0, err
	}
	d.buf[0] = b
	rpio.SpiExchange(d.buf[:])
	return d.buf[0], nil
}

func (d *rpiSPIDriver) Close() {
	if d.active != nil {
		rpio.SpiEnd(d.active.dev)
		d.active = nil
	}
}
