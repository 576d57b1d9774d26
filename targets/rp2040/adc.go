//go:build rp2040

package main

import (
	"errors"
	"machine"

	"catprotect/core"
)

var errADCChannel = errors.New("adc: channel must be 0-3")

var adcPins = [...]machine.Pin{machine.ADC0, machine.ADC1, machine.ADC2, machine.ADC3}

// adcDriver reads analog motion sensors on GPIO26-29. Channels are set up
// on first use so a config naming an unused channel costs nothing.
type adcDriver struct {
	inputs [len(adcPins)]*machine.ADC
}

func newADCDriver() *adcDriver {
	machine.InitADC()
	return &adcDriver{}
}

func (d *adcDriver) ConfigureChannel(ch core.ADCChannelID) error {
	if int(ch) >= len(adcPins) {
		return errADCChannel
	}
	if d.inputs[ch] != nil {
		return nil
	}
	in := &machine.ADC{Pin: adcPins[ch]}
	if err := in.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.inputs[ch] = in
	return nil
}

// ReadRaw returns TinyGo's left-aligned 16-bit reading.
func (d *adcDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	if err := d.ConfigureChannel(ch); err != nil {
		return 0, err
	}
	return core.ADCValue(d.inputs[ch].Get()), nil
}
