package sdcard

import "catprotect/core"

// ResponseShape is the response format a command expects.
type ResponseShape uint8

const (
	ShapeR1   ResponseShape = iota // 1 status byte
	ShapeR3R7                      // status byte + 32-bit big-endian payload
)

// Command packs the command index, the response shape and the application
// command flag.
type Command uint16

const (
	indexMask = 0x003F
	shapeR3R7 = 0x0040

	// AppFlag marks an application command; it is sent after a CMD55 escape.
	AppFlag = 0x0100
)

const (
	CmdGoIdleState       Command = 0
	CmdSendIfCond        Command = 8 | shapeR3R7
	CmdStopTransmission  Command = 12
	CmdSetBlockLen       Command = 16
	CmdReadSingleBlock   Command = 17
	CmdReadMultipleBlock Command = 18
	CmdAppCommand        Command = 55
	CmdReadOCR           Command = 58 | shapeR3R7
	ACmdSendOpCond       Command = 41 | AppFlag
)

// R1 status bits
const (
	R1Ready          = 0x00
	R1IdleState      = 0x01
	R1IllegalCommand = 0x04
)

const (
	tokenStartBlock = 0xFE
	idleByte        = 0xFF

	checkPattern = 0xAA
	ifCondArg    = 0x100 | checkPattern // 2.7-3.6V, check pattern
	hcsBit       = 0x40000000
	ocrCapacity  = 0xC0000000

	responsePolls = 16
)

// Index returns the 6-bit command index.
func (c Command) Index() uint8 { return uint8(c & indexMask) }

// Shape returns the expected response format.
func (c Command) Shape() ResponseShape {
	if c&shapeR3R7 != 0 {
		return ShapeR3R7
	}
	return ShapeR1
}

// IsApp reports whether the command needs the CMD55 escape.
func (c Command) IsApp() bool { return c&AppFlag != 0 }

// Frame is a single command as it goes on the wire.
type Frame struct {
	Index    uint8
	Argument uint32
	CRC      uint8 // full trailing byte: crc7<<1 | end bit
	Shape    ResponseShape
}

// NewFrame builds the frame for cmd with its checksum filled in.
func NewFrame(cmd Command, arg uint32) Frame {
	f := Frame{Index: cmd.Index(), Argument: arg, Shape: cmd.Shape()}
	b := f.Bytes()
	f.CRC = CRC7(b[:5])<<1 | 1
	return f
}

// Bytes renders the 6-byte frame: 0x40|index, argument big-endian, CRC.
func (f Frame) Bytes() [6]byte {
	return [6]byte{
		0x40 | f.Index&indexMask,
		byte(f.Argument >> 24),
		byte(f.Argument >> 16),
		byte(f.Argument >> 8),
		byte(f.Argument),
		f.CRC,
	}
}

// SendCommand transmits cmd (preceded by CMD55 for application commands)
// and returns its R1 byte and, for R3/R7 commands, the 32-bit payload.
// The caller owns chip select.
func (c *Card) SendCommand(cmd Command, arg uint32) (byte, uint32) {
	if cmd.IsApp() {
		c.sendFrame(NewFrame(CmdAppCommand, 0))
		c.response()
	}
	f := NewFrame(cmd, arg)
	c.sendFrame(f)
	r1 := c.response()

	var payload uint32
	if f.Shape == ShapeR3R7 {
		for i := 0; i < 4; i++ {
			payload = payload<<8 | uint32(c.recv())
		}
	}
	return r1, payload
}

// sendCommandReady waits for the card to release the bus before sending.
func (c *Card) sendCommandReady(cmd Command, arg uint32) (byte, uint32) {
	c.waitReady(c.cfg.ReadyTimeoutMS)
	return c.SendCommand(cmd, arg)
}

func (c *Card) sendFrame(f Frame) {
	b := f.Bytes()
	if err := c.bus.Tx(b[:], nil); err != nil {
		c.busErr = err
	}
}

// response polls for a byte with bit 7 clear.
func (c *Card) response() byte {
	r := c.recv()
	for i := 0; r&0x80 != 0 && i < responsePolls; i++ {
		r = c.recv()
	}
	return r
}

// waitReady polls until the card answers 0xFF or ms elapse.
func (c *Card) waitReady(ms uint32) bool {
	d := core.NewDeadline(c.clock, ms)
	for {
		if c.recv() == idleByte {
			return true
		}
		if d.Expired() || c.busErr != nil {
			return false
		}
	}
}

func (c *Card) recv() byte {
	b, err := c.bus.Transfer(idleByte)
	if err != nil {
		c.busErr = err
		return idleByte
	}
	return b
}

func (c *Card) skip(n int) {
	for i := 0; i < n; i++ {
		c.recv()
	}
}
