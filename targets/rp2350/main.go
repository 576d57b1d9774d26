//go:build rp2350

package main

import (
	"machine"
	"time"

	"catprotect/app"
	"catprotect/config"
	"catprotect/core"
)

// boardConfig is the Pico 2 wiring. The card bus and the DAC are both
// bit-banged and the sample clock is the wall clock timer, so no
// peripheral blocks beyond GPIO are needed.
func boardConfig() *config.DeviceConfig {
	cfg := config.DefaultConfig()
	cfg.Card.SPIBus = 0
	cfg.Card.CSPin = "gpio17"
	cfg.Card.FastRate = 1000000
	cfg.Output = config.OutputConfig{
		Kind:     app.OutputMCP4821Soft,
		SCKPin:   "gpio2",
		SDOPin:   "gpio3",
		CSPin:    "gpio4",
		LatchPin: "gpio5",
	}
	cfg.Motion.ADCChannel = -1
	cfg.Motion.Pin = "gpio22"
	return cfg
}

func main() {
	initUSB()

	// Clear any watchdog state left from before the reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	cfg := boardConfig()
	if cfg.Debug {
		initDebugUART()
	}

	// Read a few times so the timer is stable after runtime init
	clock := hwClock{}
	_ = clock.Now()
	_ = clock.Now()

	dev, err := app.Assemble(cfg, app.Hardware{
		Clock: clock,
		GPIO:  NewRPGPIODriver(),
		SPI:   newSoftSPIDriver(clock),
		Timer: &core.ClockTimer{Clock: clock},
		Sink:  reportSink,
	})
	if err != nil {
		halt(err)
	}

	// A failed setup leaves the LED blinking red; keep the loop running
	// so the pattern shows.
	if err := dev.Setup(); err != nil {
		core.DumpEvents()
	}

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					core.DebugPrintln("[MAIN] recovered from panic")
					core.DumpEvents()
				}
			}()
			dev.Tick(clock.Now())
		}()

		// Yield to the USB stack
		time.Sleep(100 * time.Microsecond)
	}
}

// halt reports a fatal wiring error forever
func halt(err error) {
	for {
		core.DebugPrintln("[MAIN] " + err.Error())
		time.Sleep(time.Second)
	}
}
