// Package config loads the device configuration.
package config

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"catprotect/motion"
	"catprotect/player"
	"catprotect/sdcard"
)

var ErrBadPin = errors.New("config: bad pin name")

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*DeviceConfig, error) {
	config := DeviceConfig{Motion: MotionConfig{ADCChannel: -2}}

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	return &config, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *DeviceConfig) {
	def := DefaultConfig()

	if config.Clip == "" {
		config.Clip = def.Clip
	}

	card := &config.Card
	if card.CSPin == "" {
		card.CSPin = def.Card.CSPin
	}
	if card.SlowRate == 0 {
		card.SlowRate = def.Card.SlowRate
	}
	if card.FastRate == 0 {
		card.FastRate = def.Card.FastRate
	}
	if card.InitTimeoutMS == 0 {
		card.InitTimeoutMS = def.Card.InitTimeoutMS
	}
	if card.ReadyTimeoutMS == 0 {
		card.ReadyTimeoutMS = def.Card.ReadyTimeoutMS
	}

	out := &config.Output
	if out.Kind == "" {
		*out = def.Output
	}

	p := &config.Player
	if p.SampleRate == 0 {
		p.SampleRate = def.Player.SampleRate
	}
	if p.BufferSamples == 0 {
		p.BufferSamples = def.Player.BufferSamples
	}
	if p.MarginSamples == 0 {
		p.MarginSamples = def.Player.MarginSamples
	}
	if p.FadeLevel == 0 {
		p.FadeLevel = def.Player.FadeLevel
	}
	if p.FadeStep == 0 {
		p.FadeStep = def.Player.FadeStep
	}
	if p.FadeDelayUS == 0 {
		p.FadeDelayUS = def.Player.FadeDelayUS
	}

	m := &config.Motion
	if m.ADCChannel == -2 {
		// Not given: analog sensor on channel 0 unless a pin is set
		if m.Pin != "" {
			m.ADCChannel = -1
		} else {
			m.ADCChannel = def.Motion.ADCChannel
		}
	}
	if m.Threshold == 0 {
		m.Threshold = def.Motion.Threshold
	}
	if m.IdleMS == 0 {
		m.IdleMS = def.Motion.IdleMS
	}

	if config.LED.RedPin == "" {
		config.LED.RedPin = def.LED.RedPin
	}
	if config.LED.GreenPin == "" {
		config.LED.GreenPin = def.LED.GreenPin
	}
}

// DefaultConfig returns the configuration of the reference board
func DefaultConfig() *DeviceConfig {
	return &DeviceConfig{
		Clip: "CAT.RAW",
		Card: CardConfig{
			SPIBus:         0,
			CSPin:          "gpio17",
			SlowRate:       250000,
			FastRate:       32000000,
			InitTimeoutMS:  2000,
			ReadyTimeoutMS: 300,
		},
		Output: OutputConfig{
			Kind:     "mcp4821",
			SPIBus:   1, // SPI1 on gpio10/11
			CSPin:    "gpio13",
			LatchPin: "gpio14",
			SCKPin:   "gpio10",
			SDOPin:   "gpio11",
			PWMPin:   "gpio15",
		},
		Player: PlayerConfig{
			SampleRate:    22050,
			BufferSamples: 256,
			MarginSamples: 4,
			FadeLevel:     0x800,
			FadeStep:      0x10,
			FadeDelayUS:   100,
			WatchdogMS:    0,
		},
		Motion: MotionConfig{
			ADCChannel: 0,
			Threshold:  uint16(motion.DefaultThreshold),
			IdleMS:     motion.DefaultIdleMS,
		},
		LED: LEDConfig{
			RedPin:   "gpio6",
			GreenPin: "gpio7",
		},
	}
}

// SDCard returns the card driver settings
func (c *DeviceConfig) SDCard() sdcard.Config {
	return sdcard.Config{
		SlowRate:       c.Card.SlowRate,
		FastRate:       c.Card.FastRate,
		InitTimeoutMS:  c.Card.InitTimeoutMS,
		ReadyTimeoutMS: c.Card.ReadyTimeoutMS,
	}
}

// PlayerSettings returns the playback settings. The watchdog is kicked
// four times per timeout period.
func (c *DeviceConfig) PlayerSettings() player.Config {
	cfg := player.DefaultConfig()
	cfg.SampleRate = c.Player.SampleRate
	cfg.Capacity = c.Player.BufferSamples
	cfg.Margin = c.Player.MarginSamples
	cfg.FadeLevel = c.Player.FadeLevel
	cfg.FadeStep = c.Player.FadeStep
	cfg.FadeDelayUS = c.Player.FadeDelayUS
	cfg.WatchdogEvery = 0
	if c.Player.WatchdogMS != 0 {
		cfg.WatchdogEvery = c.Player.SampleRate * c.Player.WatchdogMS / 4000
		if cfg.WatchdogEvery == 0 {
			cfg.WatchdogEvery = 1
		}
	}
	return cfg
}

// ParsePin converts a pin name such as "gpio5" or "GP5" to its number
func ParsePin(name string) (uint32, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(s, "gpio"):
		s = s[4:]
	case strings.HasPrefix(s, "gp"):
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || s == "" {
		return 0, ErrBadPin
	}
	return uint32(n), nil
}
