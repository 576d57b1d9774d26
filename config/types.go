package config

// CardConfig describes the SD card wiring and bus profiles
type CardConfig struct {
	SPIBus         uint8  `json:"spi_bus"`          // board specific bus id
	CSPin          string `json:"cs_pin"`           // chip select, e.g. "gpio5"
	SlowRate       uint32 `json:"slow_rate"`        // bring-up clock (Hz)
	FastRate       uint32 `json:"fast_rate"`        // data clock (Hz)
	InitTimeoutMS  uint32 `json:"init_timeout_ms"`  // whole bring-up budget
	ReadyTimeoutMS uint32 `json:"ready_timeout_ms"` // per command ready wait
}

// OutputConfig selects and wires the output stage
type OutputConfig struct {
	Kind     string `json:"kind"` // "mcp4821", "mcp4821-soft", "mcp4821-pio", "pwm"
	SPIBus   uint8  `json:"spi_bus"`
	CSPin    string `json:"cs_pin"`
	LatchPin string `json:"latch_pin"`
	SCKPin   string `json:"sck_pin"` // bit-banged and PIO outputs
	SDOPin   string `json:"sdo_pin"`
	PWMPin   string `json:"pwm_pin"`
}

// PlayerConfig holds the playback constants
type PlayerConfig struct {
	SampleRate    uint32 `json:"sample_rate"`    // Hz
	BufferSamples int    `json:"buffer_samples"` // ring size, power of two
	MarginSamples int    `json:"margin_samples"` // never filled by top-ups
	FadeLevel     uint16 `json:"fade_level"`
	FadeStep      uint16 `json:"fade_step"`
	FadeDelayUS   uint32 `json:"fade_delay_us"`
	WatchdogMS    uint32 `json:"watchdog_ms"` // 0 disables the watchdog
}

// MotionConfig describes the PIR sensor
type MotionConfig struct {
	ADCChannel int    `json:"adc_channel"` // -1 for a digital sensor
	Pin        string `json:"pin"`         // digital sensor input
	ActiveLow  bool   `json:"active_low"`
	Threshold  uint16 `json:"threshold"` // 16-bit scaled ADC level
	IdleMS     uint32 `json:"idle_ms"`   // quiet time before arming
}

// LEDConfig wires the two-colour status LED
type LEDConfig struct {
	RedPin   string `json:"red_pin"`
	GreenPin string `json:"green_pin"`
}

// DeviceConfig is the complete device configuration
type DeviceConfig struct {
	Clip      string `json:"clip"`       // directory name played on alarm
	Debug     bool   `json:"debug"`      // enable debug output
	ReportHex bool   `json:"report_hex"` // host side: dump raw frames

	Card   CardConfig   `json:"card"`
	Output OutputConfig `json:"output"`
	Player PlayerConfig `json:"player"`
	Motion MotionConfig `json:"motion"`
	LED    LEDConfig    `json:"led"`
}
