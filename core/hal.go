package core

// The board layer implements these drivers. Device code only sees the
// interfaces so the same firmware runs on the RP2040, the RP2350, a
// Raspberry Pi and the host simulator.

// GPIOPin is a board pin number.
type GPIOPin uint32

// GPIODriver drives the chip selects, LEDs and bit-banged DAC lines and
// reads the motion sensor.
type GPIODriver interface {
	ConfigureOutput(pin GPIOPin) error
	ConfigureInputPullUp(pin GPIOPin) error
	ConfigureInputPullDown(pin GPIOPin) error
	// SetPin drives an output; true is high.
	SetPin(pin GPIOPin, value bool) error
	GetPin(pin GPIOPin) (bool, error)
}

// PWMPin is a pin with a hardware PWM slice behind it.
type PWMPin uint32

// PWMValue is a compare level between 0 and GetMaxValue.
type PWMValue uint32

// PWMDriver backs the filtered-PWM audio output.
type PWMDriver interface {
	// ConfigureHardwarePWM starts a slice with the requested period and
	// returns the period the hardware settled on.
	ConfigureHardwarePWM(pin PWMPin, cycleTicks uint32) (uint32, error)
	SetDutyCycle(pin PWMPin, value PWMValue) error
	GetMaxValue() uint32
	// DisablePWM parks the pin low.
	DisablePWM(pin PWMPin) error
}

// ADCChannelID is a converter input.
type ADCChannelID uint8

// ADCValue is a reading scaled to 16 bits whatever the converter width.
type ADCValue uint16

// ADCDriver samples analog motion sensors.
type ADCDriver interface {
	ConfigureChannel(ch ADCChannelID) error
	ReadRaw(ch ADCChannelID) (ADCValue, error)
}

// SPIBusID selects a controller, or a pin set for software buses.
type SPIBusID uint8

// SPIMode packs clock polarity in bit 1 and phase in bit 0. The card and
// the MCP4821 both use mode 0.
type SPIMode uint8

// SPIConfig describes one bus.
type SPIConfig struct {
	BusID SPIBusID
	Mode  SPIMode
	Rate  uint32 // Hz
}

// SPIDriver moves bytes on a bus. Chip selects are plain GPIOs owned by
// SPIDevice.
type SPIDriver interface {
	// ConfigureBus returns a handle for the bus. Calling it again for the
	// same bus only changes the clock, which is how the card switches from
	// 400 kHz bring-up to its fast rate.
	ConfigureBus(config SPIConfig) (interface{}, error)

	// Transfer clocks out tx while filling rx of the same length.
	Transfer(busHandle interface{}, tx []byte, rx []byte) error

	// TransferByte is the per-sample streaming path and must not allocate.
	TransferByte(busHandle interface{}, b byte) (byte, error)
}
