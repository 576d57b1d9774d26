// Package sdcard drives an SD card in SPI mode: bring-up, the command
// protocol and a resumable block read streamer.
package sdcard

import "catprotect/core"

// BlockSize is the only block length the driver uses.
const BlockSize = 512

// CardType is the card family detected during bring-up.
type CardType uint8

const (
	TypeUnknown CardType = iota
	TypeSD1              // legacy, rejects CMD8
	TypeSD2              // version 2 standard capacity
	TypeSDHC             // high capacity, block addressed
)

func (t CardType) String() string {
	switch t {
	case TypeSD1:
		return "SD1"
	case TypeSD2:
		return "SD2"
	case TypeSDHC:
		return "SDHC"
	}
	return "unknown"
}

// Descriptor is the card state established by bring-up. Only LastError
// changes afterwards.
type Descriptor struct {
	Type      CardType
	BlockSize uint16
	LastError ErrorCode
}

// Config holds the bus profiles and timeouts.
type Config struct {
	SlowRate       uint32 // bring-up clock, at most 400kHz
	FastRate       uint32 // data clock after bring-up
	InitTimeoutMS  uint32 // shared budget for the whole bring-up
	ReadyTimeoutMS uint32 // wait for 0xFF before each command and after stop
	SyncTimeoutMS  uint32 // budget for the Sync* helpers
}

// DefaultConfig returns the timings the firmware ships with.
func DefaultConfig() Config {
	return Config{
		SlowRate:       250000,
		FastRate:       32000000,
		InitTimeoutMS:  2000,
		ReadyTimeoutMS: 300,
		SyncTimeoutMS:  1000,
	}
}

func (cfg *Config) applyDefaults() {
	def := DefaultConfig()
	if cfg.SlowRate == 0 {
		cfg.SlowRate = def.SlowRate
	}
	if cfg.FastRate == 0 {
		cfg.FastRate = def.FastRate
	}
	if cfg.InitTimeoutMS == 0 {
		cfg.InitTimeoutMS = def.InitTimeoutMS
	}
	if cfg.ReadyTimeoutMS == 0 {
		cfg.ReadyTimeoutMS = def.ReadyTimeoutMS
	}
	if cfg.SyncTimeoutMS == 0 {
		cfg.SyncTimeoutMS = def.SyncTimeoutMS
	}
}

// Card is one SD card on a Bus. It holds at most one read session.
// A Card is not safe for concurrent use.
type Card struct {
	bus   Bus
	clock core.Clock
	cfg   Config

	desc   Descriptor
	sess   session
	busErr error
}

// New returns a card on bus. Zero Config fields take their defaults.
func New(bus Bus, clock core.Clock, cfg Config) *Card {
	cfg.applyDefaults()
	return &Card{
		bus:   bus,
		clock: clock,
		cfg:   cfg,
		desc:  Descriptor{BlockSize: BlockSize},
	}
}

// Descriptor returns the current card descriptor.
func (c *Card) Descriptor() Descriptor {
	return c.desc
}

// Err returns the sentinel error for the last recorded failure.
func (c *Card) Err() error {
	return c.desc.LastError.Err()
}

// RecordError stores a failure detected by a layer above the card, such as
// an unknown directory magic.
func (c *Card) RecordError(code ErrorCode) {
	c.desc.LastError = code
}

// BringUp initialises the card and switches the bus to the fast profile.
// All steps share one deadline of Config.InitTimeoutMS.
func (c *Card) BringUp() (Descriptor, error) {
	c.busErr = nil
	c.sess = session{}
	c.desc = Descriptor{BlockSize: BlockSize}

	code := c.bringUp()
	c.bus.Deselect()
	if code == CodeNone && c.busErr != nil {
		code = CodeBus
	}
	c.busErr = nil
	c.desc.LastError = code

	core.RecordEvent(core.EvtBringUp, uint8(code), c.clock.Now(), uint32(c.desc.Type), 0)
	if code != CodeNone {
		core.DebugPrintln("[SD] bring-up failed: " + code.String() + " " + core.Hex8(uint8(code)))
		return c.desc, code.Err()
	}
	core.DebugPrintln("[SD] card ready: " + c.desc.Type.String())
	return c.desc, nil
}

func (c *Card) bringUp() ErrorCode {
	d := core.NewDeadline(c.clock, c.cfg.InitTimeoutMS)

	if err := c.bus.SetRate(c.cfg.SlowRate); err != nil {
		return CodeBus
	}

	// At least 74 clocks with the card deselected
	c.bus.Deselect()
	c.skip(10)
	c.bus.Select()

	for {
		r1, _ := c.sendCommandReady(CmdGoIdleState, 0)
		if r1 == R1IdleState {
			break
		}
		if c.busErr != nil {
			return CodeBus
		}
		if d.Expired() {
			return CodeTimedOut
		}
	}

	r1, echo := c.sendCommandReady(CmdSendIfCond, ifCondArg)
	if r1&R1IllegalCommand != 0 {
		c.desc.Type = TypeSD1
	} else {
		if echo&0xFF != checkPattern {
			return CodeInterfaceCheck
		}
		c.desc.Type = TypeSD2
	}

	var arg uint32
	if c.desc.Type != TypeSD1 {
		arg = hcsBit
	}
	for {
		r1, _ := c.sendCommandReady(ACmdSendOpCond, arg)
		if r1 == R1Ready {
			break
		}
		if c.busErr != nil {
			return CodeBus
		}
		if d.Expired() {
			return CodeTimedOut
		}
	}

	if c.desc.Type != TypeSD1 {
		r1, ocr := c.sendCommandReady(CmdReadOCR, 0)
		if r1 != R1Ready {
			return CodeReadOCR
		}
		// Power-up status and CCS must both be set
		if ocr&ocrCapacity == ocrCapacity {
			c.desc.Type = TypeSDHC
		}
	}

	if r1, _ := c.sendCommandReady(CmdSetBlockLen, BlockSize); r1 != R1Ready {
		return CodeBlockLength
	}

	if err := c.bus.SetRate(c.cfg.FastRate); err != nil {
		return CodeBus
	}
	return CodeNone
}

// address converts a block number to the argument a read command takes.
func (c *Card) address(block uint32) uint32 {
	if c.desc.Type == TypeSDHC {
		return block
	}
	return block * BlockSize
}

// fail records code and returns StatusError.
func (c *Card) fail(code ErrorCode) Status {
	c.desc.LastError = code
	return StatusError
}

// busFailed converts a pending transport error into a failure.
func (c *Card) busFailed() bool {
	if c.busErr == nil {
		return false
	}
	c.busErr = nil
	c.desc.LastError = CodeBus
	return true
}
