//go:build rp2040

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"
)

// RP2040 PWM block memory map. A slice counter wraps at TOP and raises
// its bit in the raw interrupt register; nothing needs a pin.
const (
	pwmBase      = 0x40050000
	pwmSliceSize = 0x14
	pwmCSR       = 0x00
	pwmDIV       = 0x04
	pwmCTR       = 0x08
	pwmTOP       = 0x10
	pwmINTR      = 0xA4 // raw interrupts, write 1 to clear

	pwmCSREnable = 1 << 0
	pwmDivOne    = 1 << 4 // 8.4 fixed point
)

var errTimerRate = errors.New("sample rate out of range")

func pwmReg(off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(pwmBase) + off))
}

// pwmSampleTimer paces playback on the wrap flag of one PWM slice.
// It satisfies player.SampleTimer.
type pwmSampleTimer struct {
	slice uint8
	mask  uint32
}

func newPWMSampleTimer(slice uint8) *pwmSampleTimer {
	return &pwmSampleTimer{slice: slice, mask: 1 << slice}
}

func (t *pwmSampleTimer) reg(off uintptr) *volatile.Register32 {
	return pwmReg(uintptr(t.slice)*pwmSliceSize + off)
}

// Start runs the slice at hz wraps per second. At 125MHz and 22050Hz
// TOP is 5668, so the actual rate is within 0.01%.
func (t *pwmSampleTimer) Start(hz uint32) error {
	if hz == 0 {
		return errTimerRate
	}
	top := machine.CPUFrequency()/hz - 1
	if top == 0 || top > 0xFFFF {
		return errTimerRate
	}
	t.reg(pwmCSR).Set(0)
	t.reg(pwmDIV).Set(pwmDivOne)
	t.reg(pwmCTR).Set(0)
	t.reg(pwmTOP).Set(top)
	pwmReg(pwmINTR).Set(t.mask)
	t.reg(pwmCSR).Set(pwmCSREnable)
	return nil
}

// Overflowed reports whether the counter wrapped since the last clear
func (t *pwmSampleTimer) Overflowed() bool {
	return pwmReg(pwmINTR).Get()&t.mask != 0
}

func (t *pwmSampleTimer) ClearOverflow() {
	pwmReg(pwmINTR).Set(t.mask)
}

func (t *pwmSampleTimer) Stop() {
	t.reg(pwmCSR).Set(0)
	pwmReg(pwmINTR).Set(t.mask)
}
