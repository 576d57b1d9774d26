//go:build !tinygo

package core

// irqMask carries no state on the host: the simulator and the Pi target run
// the device loop on a single goroutine.
type irqMask struct{}

func maskIRQ() irqMask { return irqMask{} }

func (irqMask) restore() {}
