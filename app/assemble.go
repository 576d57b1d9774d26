package app

import (
	"errors"

	"tinygo.org/x/drivers"

	"catprotect/config"
	"catprotect/core"
	"catprotect/dac"
	"catprotect/indicator"
	"catprotect/motion"
	"catprotect/player"
	"catprotect/protocol"
	"catprotect/sdcard"
)

// Output stage kinds built from configuration. Other kinds must be
// supplied through Hardware.Output.
const (
	OutputMCP4821     = "mcp4821"      // DAC on a hardware SPI bus
	OutputMCP4821Soft = "mcp4821-soft" // DAC on bit-banged GPIO
	OutputPWM         = "pwm"
)

const (
	dacRate       = 16000000 // MCP4821 tops out at 20MHz
	pwmCycleTicks = 4        // 250kHz carrier at 1MHz ticks
)

var (
	ErrUnknownOutput = errors.New("app: unknown output kind")
	ErrNoDriver      = errors.New("app: required driver missing")
)

// Hardware is what a target provides. ADC, PWM, Watchdog, Output and
// Sink are optional; ADC and PWM are only needed when the configuration
// asks for them.
type Hardware struct {
	Clock    core.Clock
	GPIO     core.GPIODriver
	SPI      core.SPIDriver
	ADC      core.ADCDriver
	PWM      core.PWMDriver
	Timer    player.SampleTimer
	Watchdog player.Watchdog
	Output   player.OutputStage // overrides cfg.Output when set
	Sink     protocol.Sink
}

// Assemble builds every part from cfg and returns the device, not yet set
// up.
func Assemble(cfg *config.DeviceConfig, hw Hardware) (*Device, error) {
	if hw.Clock == nil || hw.GPIO == nil || hw.SPI == nil || hw.Timer == nil {
		return nil, ErrNoDriver
	}

	csPin, err := config.ParsePin(cfg.Card.CSPin)
	if err != nil {
		return nil, err
	}
	cardBus, err := core.NewSPIDevice(hw.SPI, hw.GPIO, core.GPIOPin(csPin), false, core.SPIConfig{
		BusID: core.SPIBusID(cfg.Card.SPIBus),
		Mode:  0,
		Rate:  cfg.Card.SlowRate,
	})
	if err != nil {
		return nil, err
	}
	card := sdcard.New(cardBus, hw.Clock, cfg.SDCard())

	out := hw.Output
	if out == nil {
		out, err = buildOutput(&cfg.Output, hw)
		if err != nil {
			return nil, err
		}
	}

	p, err := player.New(card, out, hw.Timer, hw.Clock, cfg.PlayerSettings())
	if err != nil {
		return nil, err
	}
	p.SetClaimer(cardBus)
	if hw.Watchdog != nil && cfg.Player.WatchdogMS != 0 {
		p.SetWatchdog(hw.Watchdog)
	}

	probe, err := buildProbe(&cfg.Motion, hw)
	if err != nil {
		return nil, err
	}

	red, err := config.ParsePin(cfg.LED.RedPin)
	if err != nil {
		return nil, err
	}
	green, err := config.ParsePin(cfg.LED.GreenPin)
	if err != nil {
		return nil, err
	}
	led, err := indicator.New(hw.GPIO, core.GPIOPin(red), core.GPIOPin(green))
	if err != nil {
		return nil, err
	}

	var reporter *protocol.Reporter
	if hw.Sink != nil {
		reporter = protocol.NewReporter(hw.Sink)
	}

	return New(Parts{
		Card:     card,
		Player:   p,
		Sensor:   motion.NewSensor(probe, cfg.Motion.IdleMS),
		LED:      led,
		Reporter: reporter,
		Clock:    hw.Clock,
	}, cfg.Clip), nil
}

func buildOutput(cfg *config.OutputConfig, hw Hardware) (player.OutputStage, error) {
	switch cfg.Kind {
	case OutputMCP4821, OutputMCP4821Soft:
		cs, err := config.ParsePin(cfg.CSPin)
		if err != nil {
			return nil, err
		}
		latch, err := config.ParsePin(cfg.LatchPin)
		if err != nil {
			return nil, err
		}
		var bus drivers.SPI
		if cfg.Kind == OutputMCP4821 {
			// CS is driven by the DAC driver, not the bus
			bus, err = core.NewSPIDevice(hw.SPI, nil, 0, false, core.SPIConfig{
				BusID: core.SPIBusID(cfg.SPIBus),
				Rate:  dacRate,
			})
		} else {
			bus, err = softBus(cfg, hw.GPIO)
		}
		if err != nil {
			return nil, err
		}
		return dac.NewMCP4821(bus, hw.GPIO, core.GPIOPin(cs), core.GPIOPin(latch))

	case OutputPWM:
		if hw.PWM == nil {
			return nil, ErrNoDriver
		}
		pin, err := config.ParsePin(cfg.PWMPin)
		if err != nil {
			return nil, err
		}
		return dac.NewPWMOutput(hw.PWM, core.PWMPin(pin), pwmCycleTicks)
	}
	return nil, ErrUnknownOutput
}

func softBus(cfg *config.OutputConfig, gpio core.GPIODriver) (*dac.BitBangSPI, error) {
	sck, err := config.ParsePin(cfg.SCKPin)
	if err != nil {
		return nil, err
	}
	sdo, err := config.ParsePin(cfg.SDOPin)
	if err != nil {
		return nil, err
	}
	return dac.NewBitBangSPI(gpio, core.GPIOPin(sck), core.GPIOPin(sdo), dac.NoPin)
}

func buildProbe(cfg *config.MotionConfig, hw Hardware) (motion.Probe, error) {
	if cfg.ADCChannel >= 0 {
		if hw.ADC == nil {
			return nil, ErrNoDriver
		}
		probe, err := motion.NewADCProbe(hw.ADC, core.ADCChannelID(cfg.ADCChannel))
		if err != nil {
			return nil, err
		}
		probe.Threshold = core.ADCValue(cfg.Threshold)
		return probe, nil
	}
	pin, err := config.ParsePin(cfg.Pin)
	if err != nil {
		return nil, err
	}
	return motion.NewPinProbe(hw.GPIO, core.GPIOPin(pin), cfg.ActiveLow)
}
