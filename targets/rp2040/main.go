//go:build rp2040

package main

import (
	"machine"
	"time"

	"catprotect/app"
	"catprotect/config"
	"catprotect/core"
	"catprotect/protocol"
)

// sampleTimerSlice is a PWM slice whose pins are not used for output
const sampleTimerSlice = 4

// watchdog kicks the hardware watchdog. It satisfies player.Watchdog.
type watchdog struct{}

func (watchdog) Update() {
	machine.Watchdog.Update()
}

func main() {
	// Clear any watchdog state left from before the reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	cfg := config.DefaultConfig()
	if cfg.Debug {
		machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})
		core.SetDebugWriter(func(s string) {
			machine.UART0.Write([]byte(s))
			machine.UART0.Write([]byte("\r\n"))
		})
		core.SetDebugEnabled(true)
		core.InitAsyncDebug()
	}

	clock := hwClock{}
	gpio := NewRPGPIODriver()
	hw := app.Hardware{
		Clock: clock,
		GPIO:  gpio,
		SPI:   NewRP2040SPIDriver(),
		PWM:   NewRP2040PWMDriver(),
		Timer: newPWMSampleTimer(sampleTimerSlice),
		Sink: func(frame []byte) {
			// Reports are best effort; a missing host must not stall playback
			machine.Serial.Write(frame)
		},
	}
	if cfg.Motion.ADCChannel >= 0 {
		hw.ADC = newADCDriver()
	}
	if cfg.Output.Kind == "mcp4821-pio" {
		out, err := pioOutput(cfg, gpio)
		if err != nil {
			halt(err)
		}
		hw.Output = out
	}
	if cfg.Player.WatchdogMS != 0 {
		err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: cfg.Player.WatchdogMS})
		if err != nil {
			halt(err)
		}
		hw.Watchdog = watchdog{}
	}

	dev, err := app.Assemble(cfg, hw)
	if err != nil {
		halt(err)
	}

	// A failed setup leaves the LED blinking red; keep the loop running
	// so the pattern shows.
	if err := dev.Setup(); err != nil {
		core.DumpEvents()
	}
	if hw.Watchdog != nil {
		machine.Watchdog.Start()
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
			if hw.Watchdog != nil {
				hw.Watchdog.Update()
			}
		}()

		// Yield to the USB stack
		time.Sleep(100 * time.Microsecond)
	}
}

func pioOutput(cfg *config.DeviceConfig, gpio *RPGPIODriver) (*pioDAC, error) {
	var pins [4]uint32
	for i, name := range []string{cfg.Output.SCKPin, cfg.Output.SDOPin, cfg.Output.CSPin, cfg.Output.LatchPin} {
		pin, err := config.ParsePin(name)
		if err != nil {
			return nil, err
		}
		pins[i] = pin
	}
	return newPIODAC(gpio, machine.Pin(pins[0]), machine.Pin(pins[1]), machine.Pin(pins[2]), core.GPIOPin(pins[3]))
}

// halt reports a fatal wiring error forever
func halt(err error) {
	for {
		core.DebugPrintln("[MAIN] " + err.Error())
		time.Sleep(time.Second)
	}
}
