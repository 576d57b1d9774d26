//go:build rp2350

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2350 TIMER0 sits at a different address than the RP2040 timer.
// timeRawL at 0x28 reads the low word without latching the high word.
const (
	timerBase     = 0x400B0000
	timerTimeRawL = timerBase + 0x28
)

var timerRawL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawL)))

// hwClock reads the 1MHz hardware timer. It satisfies core.Clock.
type hwClock struct{}

func (hwClock) Now() uint32 {
	return timerRawL.Get()
}
