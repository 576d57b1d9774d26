package dac

import "catprotect/core"

// NoPin marks an unused BitBangSPI input.
const NoPin = core.GPIOPin(0xFFFFFFFF)

// BitBangSPI is a mode 0, MSB first SPI master on plain GPIO pins.
// It implements drivers.SPI.
type BitBangSPI struct {
	gpio core.GPIODriver
	sck  core.GPIOPin
	sdo  core.GPIOPin
	sdi  core.GPIOPin
}

// NewBitBangSPI configures the pins and idles the clock low. Pass NoPin as
// sdi for a write-only bus.
func NewBitBangSPI(gpio core.GPIODriver, sck, sdo, sdi core.GPIOPin) (*BitBangSPI, error) {
	for _, pin := range []core.GPIOPin{sck, sdo} {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
		if err := gpio.SetPin(pin, false); err != nil {
			return nil, err
		}
	}
	if sdi != NoPin {
		if err := gpio.ConfigureInputPullUp(sdi); err != nil {
			return nil, err
		}
	}
	return &BitBangSPI{gpio: gpio, sck: sck, sdo: sdo, sdi: sdi}, nil
}

// Transfer shifts one byte out and one byte in.
func (s *BitBangSPI) Transfer(b byte) (byte, error) {
	var in byte
	for bit := 7; bit >= 0; bit-- {
		if err := s.gpio.SetPin(s.sdo, b&(1<<bit) != 0); err != nil {
			return 0, err
		}
		if err := s.gpio.SetPin(s.sck, true); err != nil {
			return 0, err
		}
		if s.sdi != NoPin {
			level, err := s.gpio.GetPin(s.sdi)
			if err != nil {
				return 0, err
			}
			if level {
				in |= 1 << bit
			}
		}
		if err := s.gpio.SetPin(s.sck, false); err != nil {
			return 0, err
		}
	}
	return in, nil
}

// Tx writes w and fills r. A nil w sends 0xFF; a nil r discards input.
func (s *BitBangSPI) Tx(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		out := byte(0xFF)
		if w != nil {
			out = w[i]
		}
		in, err := s.Transfer(out)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}
