package sdsim

import (
	"catprotect/sdcard"
)

const blockSize = sdcard.BlockSize

// Tokens and response bits the emulated card produces.
const (
	tokenStartBlock = 0xFE
	tokenOutOfRange = 0x08 // data error token

	r1Idle         = 0x01
	r1IllegalCmd   = 0x04
	r1CRCError     = 0x08
	r1AddressError = 0x20
	r1ParamError   = 0x40

	ocrPowerUp = 0x80FF8000 // powered up, 2.7-3.6V
	ocrCCS     = 0x40000000
)

// CommandRecord is one command frame received by the card.
type CommandRecord struct {
	Index    uint8
	Argument uint32
	App      bool // preceded by CMD55
}

// Card is an emulated SD card. Exported fields configure behaviour and
// may be changed between operations; the rest is protocol state.
type Card struct {
	Type   sdcard.CardType
	Device BlockDevice

	InitPolls      int  // ACMD41 calls answered with idle before ready
	ResponseDelay  int  // 0xFF bytes before each response
	TokenDelay     int  // 0xFF bytes before each data token
	BusyAfterStop  int  // busy bytes after the CMD12 response
	BusyPolls      int  // busy bytes returned to the next idle polls
	Absent         bool // never drive the bus
	BadEcho        bool // corrupt the CMD8 check pattern
	RejectOCR      bool
	OCR            uint32 // CMD58 payload when non-zero
	RejectBlockLen bool
	RejectRead     bool
	ErrorAtBlock   int   // 1-based block of a session replaced by an error token
	FailTransfer   error // returned from every Transfer when set

	// Observations
	Selected    bool
	Rates       []uint32
	Commands    []CommandRecord
	ReadBlocks  []uint32 // first block of each read command
	IdleClocks  int      // bytes clocked while deselected
	PayloadSent int      // data bytes delivered

	idle      bool
	appNext   bool
	hcsSeen   bool
	frame     [6]byte
	frameLen  int
	out       []byte
	streaming bool
	multi     bool
	block     uint32
	sessBlock int
	scratch   [blockSize]byte
}

// New returns a powered-down card of type t backed by dev.
func New(t sdcard.CardType, dev BlockDevice) *Card {
	return &Card{Type: t, Device: dev, ResponseDelay: 1}
}

// NewImage returns a card of type t holding image.
func NewImage(t sdcard.CardType, image []byte) *Card {
	return New(t, NewBytesBlocks(image))
}

// HCSRequested reports whether the host set the high capacity bit in
// ACMD41.
func (c *Card) HCSRequested() bool {
	return c.hcsSeen
}

// Streaming reports whether a read is in progress.
func (c *Card) Streaming() bool {
	return c.streaming
}

func (c *Card) Select() error {
	c.Selected = true
	return nil
}

func (c *Card) Deselect() error {
	c.Selected = false
	return nil
}

func (c *Card) SetRate(hz uint32) error {
	c.Rates = append(c.Rates, hz)
	return nil
}

// Tx exchanges bytes one at a time. A nil w clocks out 0xFF.
func (c *Card) Tx(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		out := byte(0xFF)
		if w != nil {
			out = w[i]
		}
		in, err := c.Transfer(out)
		if err != nil {
			return err
		}
		if r != nil && i < len(r) {
			r[i] = in
		}
	}
	return nil
}

// Transfer clocks one byte in each direction.
func (c *Card) Transfer(b byte) (byte, error) {
	if c.FailTransfer != nil {
		return 0, c.FailTransfer
	}
	if !c.Selected {
		c.IdleClocks++
		return 0xFF, nil
	}
	if c.Absent {
		return 0xFF, nil
	}
	resp := c.next()
	c.receive(b)
	return resp, nil
}

// next returns the byte the card drives for the current clock.
func (c *Card) next() byte {
	if len(c.out) == 0 && c.streaming {
		c.queueBlock()
	}
	if len(c.out) > 0 {
		b := c.out[0]
		c.out = c.out[1:]
		return b
	}
	if c.BusyPolls > 0 {
		c.BusyPolls--
		return 0x00
	}
	return 0xFF
}

func (c *Card) receive(b byte) {
	if c.frameLen == 0 {
		if b&0xC0 != 0x40 {
			return
		}
	}
	c.frame[c.frameLen] = b
	c.frameLen++
	if c.frameLen == len(c.frame) {
		c.frameLen = 0
		c.execute()
	}
}

func (c *Card) respond(b ...byte) {
	for i := 0; i < c.ResponseDelay; i++ {
		c.out = append(c.out, 0xFF)
	}
	c.out = append(c.out, b...)
}

func (c *Card) r1(bits byte) byte {
	if c.idle {
		bits |= r1Idle
	}
	return bits
}

func (c *Card) execute() {
	f := c.frame
	index := f[0] & 0x3F
	arg := uint32(f[1])<<24 | uint32(f[2])<<16 | uint32(f[3])<<8 | uint32(f[4])
	app := c.appNext
	c.appNext = false
	c.Commands = append(c.Commands, CommandRecord{Index: index, Argument: arg, App: app})

	// CMD0 and CMD8 are CRC checked even with CRC off
	if index == 0 || index == 8 {
		if sdcard.CRC7(f[:5])<<1|1 != f[5] {
			c.out = c.out[:0]
			c.respond(c.r1(r1CRCError))
			return
		}
	}

	if index == 12 {
		c.out = c.out[:0]
		c.streaming = false
		c.out = append(c.out, 0x3F) // stuff byte
		c.out = append(c.out, c.r1(0))
		for i := 0; i < c.BusyAfterStop; i++ {
			c.out = append(c.out, 0x00)
		}
		return
	}

	switch {
	case index == 0:
		c.idle = true
		c.streaming = false
		c.out = c.out[:0]
		c.respond(r1Idle)
	case index == 8:
		if c.Type == sdcard.TypeSD1 {
			c.respond(c.r1(r1IllegalCmd))
			return
		}
		echo := byte(arg)
		if c.BadEcho {
			echo ^= 0xFF
		}
		c.respond(c.r1(0), 0x00, 0x00, byte(arg>>8)&0x0F, echo)
	case index == 55:
		c.appNext = true
		c.respond(c.r1(0))
	case index == 41 && app:
		c.hcsSeen = arg&ocrCCS != 0
		if c.InitPolls > 0 {
			c.InitPolls--
			c.respond(r1Idle)
			return
		}
		c.idle = false
		c.respond(0x00)
	case index == 58:
		if c.Type == sdcard.TypeSD1 || c.RejectOCR {
			c.respond(c.r1(r1IllegalCmd), 0, 0, 0, 0)
			return
		}
		ocr := uint32(ocrPowerUp)
		if c.Type == sdcard.TypeSDHC {
			ocr |= ocrCCS
		}
		if c.OCR != 0 {
			ocr = c.OCR
		}
		c.respond(c.r1(0), byte(ocr>>24), byte(ocr>>16), byte(ocr>>8), byte(ocr))
	case index == 16:
		if c.RejectBlockLen || arg != blockSize {
			c.respond(c.r1(r1ParamError))
			return
		}
		c.respond(c.r1(0))
	case index == 17 || index == 18:
		if c.idle || c.RejectRead {
			c.respond(c.r1(r1IllegalCmd))
			return
		}
		block := arg
		if c.Type != sdcard.TypeSDHC {
			if arg%blockSize != 0 {
				c.respond(r1AddressError)
				return
			}
			block = arg / blockSize
		}
		c.ReadBlocks = append(c.ReadBlocks, block)
		c.respond(0x00)
		c.block = block
		c.multi = index == 18
		c.sessBlock = 0
		c.streaming = true
	default:
		c.respond(c.r1(r1IllegalCmd))
	}
}

// queueBlock appends the next data packet of the current read.
func (c *Card) queueBlock() {
	for i := 0; i < c.TokenDelay; i++ {
		c.out = append(c.out, 0xFF)
	}
	c.sessBlock++
	if c.ErrorAtBlock > 0 && c.sessBlock == c.ErrorAtBlock {
		c.out = append(c.out, tokenOutOfRange)
		c.streaming = false
		return
	}
	if err := c.Device.ReadBlocks(c.scratch[:], int64(c.block)); err != nil {
		c.out = append(c.out, tokenOutOfRange)
		c.streaming = false
		return
	}
	crc := sdcard.CRC16(c.scratch[:])
	c.out = append(c.out, tokenStartBlock)
	c.out = append(c.out, c.scratch[:]...)
	c.out = append(c.out, byte(crc>>8), byte(crc))
	c.PayloadSent += blockSize
	c.block++
	if !c.multi {
		c.streaming = false
	}
}
