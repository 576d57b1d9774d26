// Package protocol frames status reports sent from the device to a host
// monitor over a serial link.
//
// A frame is
//
//	[len][0x10|seq][payload][crc16 hi][crc16 lo][0x7E]
//
// where len counts the whole frame and the payload is a VLQ report id
// followed by VLQ encoded fields.
package protocol

// Version is reported in the boot report.
const Version = "0.3.0"

// Frame constants
const (
	MessageMax         = 64 // Largest frame, header and trailer included
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	// Message sequence masks
	MessageSeqMask = 0x0F
)

// Message is one decoded frame.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header/trailer
	CRC      uint16
}
