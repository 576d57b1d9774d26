package sdcard

import "tinygo.org/x/drivers"

// Bus is the transport the card is attached to. Byte exchange comes from
// drivers.SPI; chip select and clock rate are controlled separately because
// the protocol needs idle clocks with the card deselected during power-up
// and a clock change after initialisation.
//
// core.SPIDevice implements Bus.
type Bus interface {
	drivers.SPI

	Select() error
	Deselect() error
	SetRate(hz uint32) error
}
