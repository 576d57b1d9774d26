package protocol

// Encoder builds outgoing frames. The sequence nibble advances once per
// frame so the monitor can count drops.
type Encoder struct {
	seq   uint8
	frame FrameBuffer
}

// EncodeFrame runs frameData against a fresh scratch frame and returns the
// finished frame. The returned slice is reused by the next call.
func (e *Encoder) EncodeFrame(frameData func(output OutputBuffer)) []byte {
	out := &e.frame
	out.Reset()

	out.Output([]byte{0, MessageDest | e.seq})
	frameData(out)

	// Oversized payloads are cut to leave room for the trailer
	out.Truncate(MessageMax - MessageTrailerSize)

	out.Set(MessagePositionLen, uint8(out.Len()+MessageTrailerSize))
	crc := CRC16(out.Bytes())
	out.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	e.seq = (e.seq + 1) & MessageSeqMask
	return out.Bytes()
}

// Sequence returns the sequence nibble of the next frame.
func (e *Encoder) Sequence() uint8 {
	return e.seq
}

// FrameHandler receives each frame that passes the length, sync and CRC
// checks. The payload aliases the input and is only valid during the call.
type FrameHandler func(m *Message)

// Decoder splits a byte stream into frames, resynchronising on the sync
// byte after any corruption.
type Decoder struct {
	synchronized bool
	expected     uint8
	started      bool
	handler      FrameHandler

	// Counters for the monitor
	Frames  uint32
	Lost    uint32 // Frames skipped according to the sequence nibble
	Corrupt uint32 // Resynchronisations
}

// NewDecoder creates a decoder that passes frames to handler
func NewDecoder(handler FrameHandler) *Decoder {
	return &Decoder{
		synchronized: true,
		handler:      handler,
	}
}

// Receive consumes every complete frame in input. A trailing partial frame
// is left for the next call.
func (d *Decoder) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageMax {
			d.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		msg := Message{
			Length:   uint8(msgLen),
			Sequence: seq & MessageSeqMask,
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
			CRC:      frameCRC,
		}
		data = data[msgLen:]

		if d.started && msg.Sequence != d.expected {
			d.Lost += uint32((msg.Sequence - d.expected) & MessageSeqMask)
		}
		d.started = true
		d.expected = (msg.Sequence + 1) & MessageSeqMask
		d.Frames++

		if d.handler != nil {
			d.handler(&msg)
		}
	}

	if consumed := len(input.Data()) - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// Reset forgets sequence history, e.g. after the device rebooted.
func (d *Decoder) Reset() {
	d.synchronized = true
	d.started = false
	d.expected = 0
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.Corrupt++
}
