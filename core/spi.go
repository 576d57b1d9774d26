// SPI device support
// Binds a configured bus to a chip select pin and tracks exclusive ownership
package core

import (
	"errors"
)

// SPI device flags
const (
	SF_CS_ACTIVE_HIGH = 0x02 // Chip select active high (default is active low)
	SF_HAVE_PIN       = 0x04 // Has chip select pin
)

var (
	ErrBusClaimed  = errors.New("spi: bus already claimed")
	ErrNotClaimed  = errors.New("spi: bus not claimed")
	ErrNoSPIDriver = errors.New("spi: no driver")
)

// SPIDevice represents a configured SPI device.
// It satisfies tinygo.org/x/drivers.SPI so it can be handed to any driver
// written against that interface.
type SPIDevice struct {
	Flags uint8   // Device flags (CS polarity, etc.)
	Pin   GPIOPin // Chip select pin (if SF_HAVE_PIN is set)

	driver SPIDriver
	gpio   GPIODriver

	// Bus configuration
	BusHandle interface{} // Opaque handle from ConfigureBus
	Config    SPIConfig

	claimed bool
	scratch [1]byte
}

// NewSPIDevice configures the bus and the chip select pin. The chip
// select is left deasserted.
func NewSPIDevice(driver SPIDriver, gpio GPIODriver, cs GPIOPin, csActiveHigh bool, cfg SPIConfig) (*SPIDevice, error) {
	if driver == nil {
		return nil, ErrNoSPIDriver
	}
	dev := &SPIDevice{
		driver: driver,
		gpio:   gpio,
		Config: cfg,
	}
	if gpio != nil {
		dev.Flags |= SF_HAVE_PIN
		dev.Pin = cs
		if csActiveHigh {
			dev.Flags |= SF_CS_ACTIVE_HIGH
		}
		if err := gpio.ConfigureOutput(cs); err != nil {
			return nil, err
		}
		if err := dev.Deselect(); err != nil {
			return nil, err
		}
	}
	handle, err := driver.ConfigureBus(cfg)
	if err != nil {
		return nil, err
	}
	dev.BusHandle = handle
	return dev, nil
}

// SetRate reconfigures the bus clock. Used to switch between the slow
// initialisation profile and the fast data profile.
func (d *SPIDevice) SetRate(rate uint32) error {
	if d.Config.Rate == rate && d.BusHandle != nil {
		return nil
	}
	cfg := d.Config
	cfg.Rate = rate
	handle, err := d.driver.ConfigureBus(cfg)
	if err != nil {
		return err
	}
	d.Config = cfg
	d.BusHandle = handle
	return nil
}

// Select asserts chip select.
func (d *SPIDevice) Select() error {
	if d.Flags&SF_HAVE_PIN == 0 {
		return nil
	}
	return d.gpio.SetPin(d.Pin, d.Flags&SF_CS_ACTIVE_HIGH != 0)
}

// Deselect deasserts chip select.
func (d *SPIDevice) Deselect() error {
	if d.Flags&SF_HAVE_PIN == 0 {
		return nil
	}
	return d.gpio.SetPin(d.Pin, d.Flags&SF_CS_ACTIVE_HIGH == 0)
}

// Tx performs a full-duplex transfer without touching chip select.
func (d *SPIDevice) Tx(w, r []byte) error {
	switch {
	case w == nil && r == nil:
		return nil
	case w == nil:
		// Clock out idle bytes
		for i := range r {
			b, err := d.driver.TransferByte(d.BusHandle, 0xFF)
			if err != nil {
				return err
			}
			r[i] = b
		}
		return nil
	case r == nil:
		for _, b := range w {
			if _, err := d.driver.TransferByte(d.BusHandle, b); err != nil {
				return err
			}
		}
		return nil
	}
	return d.driver.Transfer(d.BusHandle, w, r)
}

// Transfer exchanges a single byte.
func (d *SPIDevice) Transfer(b byte) (byte, error) {
	return d.driver.TransferByte(d.BusHandle, b)
}

// Claim marks the bus as exclusively owned. It is not reentrant: a second
// Claim before Release fails with ErrBusClaimed.
func (d *SPIDevice) Claim() error {
	defer maskIRQ().restore()
	if d.claimed {
		return ErrBusClaimed
	}
	d.claimed = true
	return nil
}

// Release gives up exclusive ownership.
func (d *SPIDevice) Release() error {
	defer maskIRQ().restore()
	if !d.claimed {
		return ErrNotClaimed
	}
	d.claimed = false
	return nil
}

// Claimed reports whether the bus is currently owned.
func (d *SPIDevice) Claimed() bool {
	return d.claimed
}
