// catprotect-sim runs the device firmware on a desktop. The SD card is an
// image file behind an emulated card, audio goes to the sound card and
// pressing Enter trips the motion sensor.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"catprotect/app"
	"catprotect/config"
	"catprotect/core"
	"catprotect/host/monitor"
	"catprotect/indicator"
	"catprotect/protocol"
	"catprotect/sdcard"
	"catprotect/sdcard/sdsim"
)

var (
	imagePath  = flag.String("image", "card.img", "SD card image built with hcdi-mkimage")
	configPath = flag.String("config", "", "JSON configuration file")
	cardType   = flag.String("card", "sdhc", "Emulated card type: sd1, sd2 or sdhc")
	idleMS     = flag.Uint("idle", 2000, "Motion re-arm time in milliseconds")
	clip       = flag.String("clip", "", "Clip to play (default from configuration)")
	debug      = flag.Bool("debug", false, "Print debug output")
)

// readAheadBlocks of zeros follow the image
const readAheadBlocks = 8

// Pins of the simulated board
const (
	pinCardCS = 5
	pinMotion = 17
	pinRed    = 6
	pinGreen  = 7
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func loadConfig() (*config.DeviceConfig, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		cfg, err = config.LoadConfig(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", *configPath)
		}
	}
	// The board wiring is fixed; only behaviour comes from the file
	cfg.Card.SPIBus = 0
	cfg.Card.CSPin = fmt.Sprintf("gpio%d", pinCardCS)
	cfg.Motion.ADCChannel = -1
	cfg.Motion.Pin = fmt.Sprintf("gpio%d", pinMotion)
	cfg.Motion.ActiveLow = false
	cfg.Motion.IdleMS = uint32(*idleMS)
	cfg.LED = config.LEDConfig{
		RedPin:   fmt.Sprintf("gpio%d", pinRed),
		GreenPin: fmt.Sprintf("gpio%d", pinGreen),
	}
	if *clip != "" {
		cfg.Clip = *clip
	}
	return cfg, nil
}

func parseCardType(s string) (sdcard.CardType, error) {
	switch s {
	case "sd1":
		return sdcard.TypeSD1, nil
	case "sd2":
		return sdcard.TypeSD2, nil
	case "sdhc":
		return sdcard.TypeSDHC, nil
	}
	return sdcard.TypeUnknown, errors.Errorf("unknown card type %q", s)
}

func openCard(path string, t sdcard.CardType) (*sdsim.Card, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.WithStack(err)
	}
	// A real card is larger than the image; the player reads ahead past
	// the end of the last clip.
	card := sdsim.New(t, sdsim.NewReaderBlocks(f, info.Size()+readAheadBlocks*sdcard.BlockSize))
	card.InitPolls = 3
	card.TokenDelay = 2
	return card, f, nil
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

	t, err := parseCardType(*cardType)
	if err != nil {
		return err
	}
	card, f, err := openCard(*imagePath, t)
	if err != nil {
		return err
	}
	defer f.Close()

	queue := newSampleQueue(int(cfg.Player.SampleRate) / 2)
	spk, err := newSpeaker(int(cfg.Player.SampleRate), queue)
	if err != nil {
		return err
	}
	defer spk.Close()

	gpio := &simGPIO{
		card:   card,
		cs:     pinCardCS,
		motion: pinMotion,
		red:    pinRed,
		green:  pinGreen,
		onChange: func(c indicator.Color, lit bool) {
			if *debug {
				log.Printf("led %s %v", colorName(c), lit)
			}
		},
	}

	// Reports are decoded in-process the same way the serial monitor does
	decoder := protocol.NewDecoder(func(m *protocol.Message) {
		r, err := protocol.DecodeReport(m.Payload)
		if err != nil {
			log.Printf("bad report: %v", err)
			return
		}
		log.Print(monitor.Format(r))
	})

	clock := core.NewHostClock()
	hw := app.Hardware{
		Clock:  clock,
		GPIO:   gpio,
		SPI:    &simSPI{card: card},
		Timer:  &core.ClockTimer{Clock: clock},
		Output: queue,
		Sink: func(frame []byte) {
			decoder.Receive(protocol.NewSliceInput(frame))
		},
	}
	dev, err := app.Assemble(cfg, hw)
	if err != nil {
		return errors.Wrap(err, "assemble device")
	}
	if err := dev.Setup(); err != nil {
		return errors.Wrap(err, "setup")
	}
	log.Printf("sensor settling for %dms, then press Enter to trip it", *idleMS)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			gpio.Trigger(500 * time.Millisecond)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-sigs:
			log.Printf("%d plays, %d samples dropped", dev.Plays(), queue.Dropped())
			return nil
		case <-tick.C:
			dev.Tick(clock.Now())
		}
	}
}

func colorName(c indicator.Color) string {
	switch c {
	case indicator.Red:
		return "red"
	case indicator.Green:
		return "green"
	}
	return "orange"
}
