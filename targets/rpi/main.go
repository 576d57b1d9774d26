//go:build linux

// Command rpi runs CatProtect on a Raspberry Pi. The card and the DAC sit
// on GPIO, the PIR on a digital input and reports go to a serial device
// or stdout.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	rpio "github.com/stianeikeland/go-rpio/v4"

	"catprotect/app"
	"catprotect/config"
	"catprotect/core"
	"catprotect/host/serial"
)

var (
	configPath = flag.String("config", "", "JSON configuration file")
	reportDev  = flag.String("report", "", "Serial device for status reports (empty = none)")
	debug      = flag.Bool("debug", false, "Print debug output to stderr")
)

// boardConfig is the Pi wiring: the card on SPI0 with a GPIO chip select,
// the DAC bit-banged so it does not fight the card for the controller.
func boardConfig() *config.DeviceConfig {
	cfg := config.DefaultConfig()
	cfg.Card.SPIBus = 0
	cfg.Card.CSPin = "gpio25"
	cfg.Card.FastRate = 16000000
	cfg.Output = config.OutputConfig{
		Kind:     app.OutputMCP4821Soft,
		SCKPin:   "gpio5",
		SDOPin:   "gpio6",
		CSPin:    "gpio13",
		LatchPin: "gpio19",
	}
	cfg.Motion.ADCChannel = -1
	cfg.Motion.Pin = "gpio17"
	cfg.LED = config.LEDConfig{RedPin: "gpio22", GreenPin: "gpio27"}
	return cfg
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func loadConfig() (*config.DeviceConfig, error) {
	if *configPath == "" {
		return boardConfig(), nil
	}
	data, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg, err := config.LoadConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", *configPath)
	}
	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *debug || cfg.Debug {
		core.SetDebugWriter(func(s string) { log.Print(s) })
		core.SetDebugEnabled(true)
	}

	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "open gpio memory")
	}
	defer rpio.Close()

	var sink io.Writer
	if *reportDev != "" {
		port, err := serial.Open(serial.DefaultConfig(*reportDev))
		if err != nil {
			return err
		}
		defer port.Close()
		sink = port
	}

	clock := core.NewHostClock()
	spi := &rpiSPIDriver{}
	defer spi.Close()

	hw := app.Hardware{
		Clock: clock,
		GPIO:  rpiGPIODriver{},
		SPI:   spi,
		PWM:   rpiPWMDriver{},
		Timer: &core.ClockTimer{Clock: clock},
	}
	if sink != nil {
		hw.Sink = func(frame []byte) {
			if _, err := sink.Write(frame); err != nil {
				log.Printf("report dropped: %v", err)
			}
		}
	}

	dev, err := app.Assemble(cfg, hw)
	if err != nil {
		return errors.Wrap(err, "assemble device")
	}
	if err := dev.Setup(); err != nil {
		// The LED shows the failure; keep running so it stays visible
		log.Printf("setup: %v", err)
	} else {
		log.Printf("armed, %d clips on card", dev.Catalog().Len())
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-sigs:
			log.Printf("stopping after %d plays", dev.Plays())
			return nil
		case <-tick.C:
			dev.Tick(clock.Now())
		}
	}
}
