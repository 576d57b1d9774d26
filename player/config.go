package player

// Config holds the playback constants.
type Config struct {
	SampleRate    uint32 // timer frequency in Hz
	Capacity      int    // ring size in samples, power of two
	Margin        int    // free samples a top-up never fills
	FadeLevel     uint16 // output value the fades ramp to and from
	FadeStep      uint16
	FadeDelayUS   uint32
	WatchdogEvery uint32 // samples between watchdog updates, 0 for never
}

// DefaultConfig returns the 22050Hz mono setup the device ships with.
func DefaultConfig() Config {
	return Config{
		SampleRate:    22050,
		Capacity:      256,
		Margin:        4,
		FadeLevel:     0x800,
		FadeStep:      0x10,
		FadeDelayUS:   100,
		WatchdogEvery: 2048,
	}
}

// fastReadSamples is the number of samples one ReadFast4 delivers.
const fastReadSamples = 2

func (c Config) validate() error {
	switch {
	case c.SampleRate == 0:
		return ErrBadConfig
	case c.Capacity < 2*fastReadSamples || c.Capacity&(c.Capacity-1) != 0:
		return ErrBadConfig
	case c.Margin < fastReadSamples || c.Margin >= c.Capacity:
		return ErrBadConfig
	case c.FadeStep == 0 || c.FadeLevel > 0xFFF:
		return ErrBadConfig
	}
	return nil
}
