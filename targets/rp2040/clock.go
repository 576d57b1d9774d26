//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// hwClock reads the 1MHz hardware timer. It satisfies core.Clock.
type hwClock struct{}

// Now returns the low 32 bits of the microsecond counter
func (hwClock) Now() uint32 {
	return timerRAWL.Get()
}
