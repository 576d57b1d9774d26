package sdcard

import "errors"

// ErrorCode is the diagnostic code kept in Descriptor.LastError.
type ErrorCode uint8

const (
	CodeNone ErrorCode = iota
	CodeTimedOut
	CodeInterfaceCheck
	CodeReadOCR
	CodeBlockLength
	CodeCommandRejected
	CodeMalformedToken
	CodeUnknownMagic
	CodeSessionOpen
	CodeNoSession
	CodeStopRejected
	CodeBus
)

// Bring-up errors.
var (
	ErrTimedOut       = errors.New("sdcard: timed out")
	ErrInterfaceCheck = errors.New("sdcard: interface condition check failed")
	ErrReadOCR        = errors.New("sdcard: reading operating condition register failed")
	ErrBlockLength    = errors.New("sdcard: block length rejected")
)

// Read errors.
var (
	ErrCommandRejected = errors.New("sdcard: read command rejected")
	ErrMalformedToken  = errors.New("sdcard: malformed data start token")
	ErrUnknownMagic    = errors.New("sdcard: unknown directory magic")
	ErrSessionOpen     = errors.New("sdcard: read session already open")
	ErrNoSession       = errors.New("sdcard: no read session open")
	ErrStopRejected    = errors.New("sdcard: stop transmission rejected")
	ErrBus             = errors.New("sdcard: bus transfer failed")
)

var codeErrors = [...]error{
	CodeNone:            nil,
	CodeTimedOut:        ErrTimedOut,
	CodeInterfaceCheck:  ErrInterfaceCheck,
	CodeReadOCR:         ErrReadOCR,
	CodeBlockLength:     ErrBlockLength,
	CodeCommandRejected: ErrCommandRejected,
	CodeMalformedToken:  ErrMalformedToken,
	CodeUnknownMagic:    ErrUnknownMagic,
	CodeSessionOpen:     ErrSessionOpen,
	CodeNoSession:       ErrNoSession,
	CodeStopRejected:    ErrStopRejected,
	CodeBus:             ErrBus,
}

// Err returns the sentinel error for the code, or nil for CodeNone.
func (c ErrorCode) Err() error {
	if int(c) >= len(codeErrors) {
		return errors.New("sdcard: unknown error code")
	}
	return codeErrors[c]
}

func (c ErrorCode) String() string {
	if c == CodeNone {
		return "none"
	}
	if err := c.Err(); err != nil {
		return err.Error()
	}
	return "unknown"
}
