//go:build rp2350

package main

import (
	"machine"
)

// initUSB configures USB CDC, which carries the status reports
func initUSB() {
	// Errors only mean no host is attached yet
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// reportSink writes report frames to the host. Reports are best effort;
// a missing host must not stall playback.
func reportSink(frame []byte) {
	_, _ = machine.Serial.Write(frame)
}
