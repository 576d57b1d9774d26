package motion

import "catprotect/core"

// DefaultThreshold is 200 of a 10-bit reading, scaled to the 16-bit
// core.ADCValue range.
const DefaultThreshold core.ADCValue = 200 << 6

// ADCProbe treats an analog reading above Threshold as motion.
type ADCProbe struct {
	ADC       core.ADCDriver
	Channel   core.ADCChannelID
	Threshold core.ADCValue
}

// NewADCProbe configures ch and returns a probe with the default
// threshold.
func NewADCProbe(adc core.ADCDriver, ch core.ADCChannelID) (*ADCProbe, error) {
	if err := adc.ConfigureChannel(ch); err != nil {
		return nil, err
	}
	return &ADCProbe{ADC: adc, Channel: ch, Threshold: DefaultThreshold}, nil
}

// Active reports a reading above the threshold. Read errors count as no
// motion.
func (p *ADCProbe) Active() bool {
	v, err := p.ADC.ReadRaw(p.Channel)
	if err != nil {
		return false
	}
	return v > p.Threshold
}

// PinProbe reads a sensor with a digital output.
type PinProbe struct {
	GPIO      core.GPIODriver
	Pin       core.GPIOPin
	ActiveLow bool
}

// NewPinProbe configures pin as a pulled-down input.
func NewPinProbe(gpio core.GPIODriver, pin core.GPIOPin, activeLow bool) (*PinProbe, error) {
	var err error
	if activeLow {
		err = gpio.ConfigureInputPullUp(pin)
	} else {
		err = gpio.ConfigureInputPullDown(pin)
	}
	if err != nil {
		return nil, err
	}
	return &PinProbe{GPIO: gpio, Pin: pin, ActiveLow: activeLow}, nil
}

func (p *PinProbe) Active() bool {
	level, err := p.GPIO.GetPin(p.Pin)
	if err != nil {
		return false
	}
	return level != p.ActiveLow
}
