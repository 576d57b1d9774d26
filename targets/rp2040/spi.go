//go:build rp2040

package main

import (
	"errors"
	"machine"

	"catprotect/core"
)

var (
	errSPIBus    = errors.New("spi: unknown bus")
	errSPIMode   = errors.New("spi: invalid mode")
	errSPIHandle = errors.New("spi: invalid handle")
	errSPILength = errors.New("spi: tx and rx lengths differ")
)

// hwBus is a controller and the pins it is routed to. The card socket on
// the reference board sits on bus 0; bus 1 is free for an SPI DAC.
type hwBus struct {
	spi            *machine.SPI
	sck, sdo, sdi  machine.Pin
	configuredRate uint32
	configuredMode core.SPIMode
	ready          bool
}

// RP2040SPIDriver implements core.SPIDriver on the two SPI controllers.
type RP2040SPIDriver struct {
	buses [2]hwBus
}

func NewRP2040SPIDriver() *RP2040SPIDriver {
	return &RP2040SPIDriver{buses: [2]hwBus{
		{spi: machine.SPI0, sck: machine.GPIO18, sdo: machine.GPIO19, sdi: machine.GPIO16},
		{spi: machine.SPI1, sck: machine.GPIO10, sdo: machine.GPIO11, sdi: machine.GPIO12},
	}}
}

// ConfigureBus (re)programs the controller. The handle is the same for
// every call on a bus, so the card keeps it across the switch to its fast
// clock. The prescaler rounds the rate down.
func (d *RP2040SPIDriver) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	if int(cfg.BusID) >= len(d.buses) {
		return nil, errSPIBus
	}
	if cfg.Mode > 3 {
		return nil, errSPIMode
	}
	bus := &d.buses[cfg.BusID]
	if bus.ready && bus.configuredRate == cfg.Rate && bus.configuredMode == cfg.Mode {
		return bus, nil
	}
	err := bus.spi.Configure(machine.SPIConfig{
		Frequency: cfg.Rate,
		SCK:       bus.sck,
		SDO:       bus.sdo,
		SDI:       bus.sdi,
		Mode:      uint8(cfg.Mode),
	})
	if err != nil {
		return nil, err
	}
	bus.configuredRate = cfg.Rate
	bus.configuredMode = cfg.Mode
	bus.ready = true
	return bus, nil
}

func (d *RP2040SPIDriver) Transfer(handle interface{}, tx, rx []byte) error {
	bus, ok := handle.(*hwBus)
	if !ok {
		return errSPIHandle
	}
	if len(tx) != len(rx) {
		return errSPILength
	}
	return bus.spi.Tx(tx, rx)
}

func (d *RP2040SPIDriver) TransferByte(handle interface{}, b byte) (byte, error) {
	bus, ok := handle.(*hwBus)
	if !ok {
		return 0, errSPIHandle
	}
	return bus.spi.Transfer(b)
}
