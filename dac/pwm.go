package dac

import "catprotect/core"

// PWMOutput plays samples as the duty cycle of a PWM pin. It needs an
// external low-pass filter.
type PWMOutput struct {
	drv     core.PWMDriver
	pin     core.PWMPin
	max     uint32
	pending uint16
	err     error
}

// NewPWMOutput configures pin with the given period in timer ticks.
func NewPWMOutput(drv core.PWMDriver, pin core.PWMPin, cycleTicks uint32) (*PWMOutput, error) {
	if _, err := drv.ConfigureHardwarePWM(pin, cycleTicks); err != nil {
		return nil, err
	}
	return &PWMOutput{drv: drv, pin: pin, max: drv.GetMaxValue()}, nil
}

// SetValue stores a 12-bit value for the next Commit.
func (o *PWMOutput) SetValue(v uint16) {
	o.pending = v & mcpDataMax
}

// Commit scales the pending value to the driver range and applies it.
func (o *PWMOutput) Commit() {
	duty := uint32(o.pending) * o.max / mcpDataMax
	if err := o.drv.SetDutyCycle(o.pin, core.PWMValue(duty)); err != nil && o.err == nil {
		o.err = err
	}
}

// Disable silences the pin between clips.
func (o *PWMOutput) Disable() {
	if err := o.drv.DisablePWM(o.pin); err != nil && o.err == nil {
		o.err = err
	}
}

// Err returns the first driver error seen, if any.
func (o *PWMOutput) Err() error {
	return o.err
}
