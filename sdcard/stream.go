package sdcard

import "catprotect/core"

// Status is the outcome of a streaming call.
type Status uint8

const (
	StatusReady      Status = iota // data delivered or command accepted
	StatusWait                     // card busy, poll again
	StatusError                    // see Descriptor.LastError
	StatusEndOfBlock               // a block completed, or the session ended
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusWait:
		return "wait"
	case StatusError:
		return "error"
	case StatusEndOfBlock:
		return "end-of-block"
	}
	return "unknown"
}

// ReadMode selects single-block or multi-block reads.
type ReadMode uint8

const (
	ModeSingle ReadMode = iota
	ModeContinuous
)

// ReadState is the position of the session inside the data stream.
type ReadState uint8

const (
	StateWaiting   ReadState = iota // polling for the start token
	StateInBlock                    // moving payload bytes
	StateInTrailer                  // payload done, CRC pending
	StateEnded                      // no further data

	stateInvalid ReadState = 0xFF
)

type readEvent uint8

const (
	evStartToken readEvent = iota
	evBadToken
	evBlockFilled
	evTrailerDone
	numReadEvents
)

// transitions[mode][state][event] gives the next state.
var transitions = [2][4][numReadEvents]ReadState{
	ModeSingle: {
		StateWaiting:   {StateInBlock, StateEnded, stateInvalid, stateInvalid},
		StateInBlock:   {stateInvalid, stateInvalid, StateInTrailer, stateInvalid},
		StateInTrailer: {stateInvalid, stateInvalid, stateInvalid, StateEnded},
		StateEnded:     {stateInvalid, stateInvalid, stateInvalid, stateInvalid},
	},
	ModeContinuous: {
		StateWaiting:   {StateInBlock, StateEnded, stateInvalid, stateInvalid},
		StateInBlock:   {stateInvalid, stateInvalid, StateInTrailer, stateInvalid},
		StateInTrailer: {stateInvalid, stateInvalid, stateInvalid, StateWaiting},
		StateEnded:     {stateInvalid, stateInvalid, stateInvalid, stateInvalid},
	},
}

type session struct {
	open   bool
	failed bool
	mode   ReadMode
	state  ReadState
	count  uint16 // payload bytes moved in the current block
}

func (s *session) advance(ev readEvent) {
	next := transitions[s.mode][s.state][ev]
	if next == stateInvalid {
		panic("sdcard: invalid read transition")
	}
	s.state = next
}

// State returns the session state, or StateEnded when no session is open.
func (c *Card) State() ReadState {
	if !c.sess.open {
		return StateEnded
	}
	return c.sess.state
}

// StartSingleRead opens a session reading one block. It returns StatusWait
// while the card is still busy.
func (c *Card) StartSingleRead(block uint32) Status {
	return c.startRead(CmdReadSingleBlock, ModeSingle, block)
}

// StartContinuousRead opens a session reading blocks from block onwards
// until Stop.
func (c *Card) StartContinuousRead(block uint32) Status {
	return c.startRead(CmdReadMultipleBlock, ModeContinuous, block)
}

func (c *Card) startRead(cmd Command, mode ReadMode, block uint32) Status {
	if c.sess.open {
		return c.fail(CodeSessionOpen)
	}
	c.bus.Select()
	if c.recv() != idleByte {
		c.bus.Deselect()
		if c.busFailed() {
			return StatusError
		}
		return StatusWait
	}
	r1, _ := c.SendCommand(cmd, c.address(block))
	c.bus.Deselect()
	if c.busFailed() {
		return StatusError
	}
	if r1 != R1Ready {
		return c.fail(CodeCommandRejected)
	}
	c.sess = session{open: true, mode: mode, state: StateWaiting}
	return StatusReady
}

// ReadChunk moves up to len(buf) payload bytes of the current block.
// StatusReady always comes with n > 0. When the block completes its
// trailer is discarded and StatusEndOfBlock is returned together with the
// bytes moved by this call.
func (c *Card) ReadChunk(buf []byte) (Status, int) {
	return c.readChunk(buf, len(buf))
}

// readChunk discards the payload when buf is nil.
func (c *Card) readChunk(buf []byte, max int) (Status, int) {
	s := &c.sess
	if !s.open {
		return c.fail(CodeNoSession), 0
	}
	if s.state == StateEnded {
		if s.failed {
			return StatusError, 0
		}
		return StatusEndOfBlock, 0
	}
	if max == 0 {
		return StatusWait, 0
	}

	c.bus.Select()
	defer c.bus.Deselect()

	if s.state == StateWaiting {
		switch c.recv() {
		case idleByte:
			if c.busFailed() {
				return StatusError, 0
			}
			return StatusWait, 0
		case tokenStartBlock:
			s.advance(evStartToken)
		default:
			s.advance(evBadToken)
			s.failed = true
			return c.fail(CodeMalformedToken), 0
		}
	}

	n := 0
	if s.state == StateInBlock {
		n = BlockSize - int(s.count)
		if max < n {
			n = max
		}
		if buf != nil {
			if err := c.bus.Tx(nil, buf[:n]); err != nil {
				c.busErr = err
			}
		} else {
			c.skip(n)
		}
		s.count += uint16(n)
		if c.busFailed() {
			// Bytes moved before the failure are not handed out
			return StatusError, 0
		}
		if s.count < BlockSize {
			return StatusReady, n
		}
		s.advance(evBlockFilled)
	}

	// StateInTrailer: CRC is not checked
	c.skip(2)
	s.count = 0
	s.advance(evTrailerDone)
	if c.busFailed() {
		return StatusError, 0
	}
	return StatusEndOfBlock, n
}

// BeginFast asserts chip select for a run of ReadFast4 calls. Stop
// releases it.
func (c *Card) BeginFast() {
	c.bus.Select()
}

// ReadFast4 moves exactly four payload bytes per StatusReady. Token and
// trailer handling each take a call of their own, reported as StatusWait
// (or StatusEndOfBlock when a single-block session finishes).
func (c *Card) ReadFast4(dst *[4]byte) Status {
	s := &c.sess
	if !s.open {
		return c.fail(CodeNoSession)
	}
	switch s.state {
	case StateWaiting:
		switch c.recv() {
		case idleByte:
			if c.busFailed() {
				return StatusError
			}
			return StatusWait
		case tokenStartBlock:
			s.advance(evStartToken)
			return StatusWait
		}
		s.advance(evBadToken)
		s.failed = true
		return c.fail(CodeMalformedToken)
	case StateInBlock:
		dst[0] = c.recv()
		dst[1] = c.recv()
		dst[2] = c.recv()
		dst[3] = c.recv()
		if c.busErr != nil {
			c.busFailed()
			return StatusError
		}
		s.count += 4
		if s.count >= BlockSize {
			s.advance(evBlockFilled)
		}
		return StatusReady
	case StateInTrailer:
		c.skip(2)
		s.count = 0
		s.advance(evTrailerDone)
		if c.busFailed() {
			return StatusError
		}
		if s.state == StateEnded {
			return StatusEndOfBlock
		}
		return StatusWait
	}
	if s.failed {
		return StatusError
	}
	return StatusEndOfBlock
}

// Stop ends the session. A continuous read is stopped with CMD12, an
// unfinished single read is drained. Without an open session it returns
// StatusReady.
func (c *Card) Stop() Status {
	s := &c.sess
	if !s.open {
		return StatusReady
	}

	status := StatusReady
	if s.mode == ModeSingle {
		d := core.NewDeadline(c.clock, c.cfg.ReadyTimeoutMS)
		for s.state != StateEnded {
			st, _ := c.readChunk(nil, BlockSize)
			if st == StatusError {
				status = StatusError
				break
			}
			if st == StatusWait && d.Expired() {
				status = c.fail(CodeTimedOut)
				break
			}
		}
	} else {
		c.bus.Select()
		c.sendFrame(NewFrame(CmdStopTransmission, 0))
		c.skip(1) // stuff byte
		if r1 := c.response(); r1 != R1Ready {
			status = c.fail(CodeStopRejected)
		} else if !c.waitReady(c.cfg.ReadyTimeoutMS) {
			status = c.fail(CodeTimedOut)
		}
		if c.busFailed() {
			status = StatusError
		}
	}

	c.bus.Deselect()
	s.open = false
	s.state = StateEnded
	if status != StatusReady {
		core.RecordEvent(core.EvtStop, uint8(c.desc.LastError), c.clock.Now(), 0, 0)
	}
	return status
}

// SyncStartSingleRead polls StartSingleRead until the card accepts the
// command or Config.SyncTimeoutMS elapses.
func (c *Card) SyncStartSingleRead(block uint32) Status {
	d := core.NewDeadline(c.clock, c.cfg.SyncTimeoutMS)
	for {
		st := c.StartSingleRead(block)
		if st != StatusWait {
			return st
		}
		if d.Expired() {
			return c.fail(CodeTimedOut)
		}
	}
}

// SyncReadChunk polls ReadChunk until it delivers data or fails.
func (c *Card) SyncReadChunk(buf []byte) (Status, int) {
	d := core.NewDeadline(c.clock, c.cfg.SyncTimeoutMS)
	for {
		st, n := c.ReadChunk(buf)
		if st != StatusWait {
			return st, n
		}
		if len(buf) == 0 {
			return st, n
		}
		if d.Expired() {
			return c.fail(CodeTimedOut), 0
		}
	}
}
