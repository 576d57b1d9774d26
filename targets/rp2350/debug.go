//go:build rp2350

package main

import (
	"machine"

	"catprotect/core"
)

// initDebugUART routes core debug output to UART1 on GPIO36 (TX) and
// GPIO37 (RX) at 115200 baud.
func initDebugUART() {
	uart := machine.UART1
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO36,
		RX:       machine.GPIO37,
	})
	if err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
	core.DebugPrintln("=== RP2350 debug UART ===")
}
