package main

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"catprotect/core"
	"catprotect/indicator"
	"catprotect/sdcard/sdsim"
)

// simSPI routes the card bus to an emulated card.
type simSPI struct {
	card *sdsim.Card
}

func (s *simSPI) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	if cfg.BusID != 0 {
		return nil, errors.Errorf("simulator has no spi bus %d", cfg.BusID)
	}
	if err := s.card.SetRate(cfg.Rate); err != nil {
		return nil, err
	}
	return s.card, nil
}

func (s *simSPI) Transfer(h interface{}, tx, rx []byte) error {
	return s.card.Tx(tx, rx)
}

func (s *simSPI) TransferByte(h interface{}, b byte) (byte, error) {
	return s.card.Transfer(b)
}

// simGPIO wires the pins the device uses: the card chip select, the
// motion input and the two LED outputs.
type simGPIO struct {
	card   *sdsim.Card
	cs     core.GPIOPin
	motion core.GPIOPin
	red    core.GPIOPin
	green  core.GPIOPin

	mu       sync.Mutex
	until    time.Time // motion input high until then
	redOn    bool
	greenOn  bool
	onChange func(c indicator.Color, lit bool)
}

func (g *simGPIO) ConfigureOutput(core.GPIOPin) error        { return nil }
func (g *simGPIO) ConfigureInputPullUp(core.GPIOPin) error   { return nil }
func (g *simGPIO) ConfigureInputPullDown(core.GPIOPin) error { return nil }

func (g *simGPIO) SetPin(pin core.GPIOPin, value bool) error {
	switch pin {
	case g.cs:
		// Chip select is active low
		if value {
			return g.card.Deselect()
		}
		return g.card.Select()
	case g.red:
		g.setLED(&g.redOn, indicator.Red, value)
	case g.green:
		g.setLED(&g.greenOn, indicator.Green, value)
	}
	return nil
}

func (g *simGPIO) setLED(state *bool, c indicator.Color, value bool) {
	if *state == value {
		return
	}
	*state = value
	if g.onChange != nil {
		g.onChange(c, value)
	}
}

func (g *simGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	if pin != g.motion {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until), nil
}

// Trigger holds the motion input high for d.
func (g *simGPIO) Trigger(d time.Duration) {
	g.mu.Lock()
	g.until = time.Now().Add(d)
	g.mu.Unlock()
}
