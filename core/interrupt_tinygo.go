//go:build tinygo

package core

import "runtime/interrupt"

// irqMask is the interrupt state saved by maskIRQ.
type irqMask interrupt.State

// maskIRQ disables interrupts. Pair it with restore:
//
//	defer maskIRQ().restore()
func maskIRQ() irqMask {
	return irqMask(interrupt.Disable())
}

func (m irqMask) restore() {
	interrupt.Restore(interrupt.State(m))
}
