package player

import (
	"errors"

	"catprotect/sdcard"
)

var (
	ErrNotFound  = errors.New("player: clip not found")
	ErrStream    = errors.New("player: stream failed")
	ErrBusy      = errors.New("player: already playing")
	ErrBadConfig = errors.New("player: invalid configuration")
	ErrTimer     = errors.New("player: sample timer failed to start")
)

// StreamError reports a streamer failure. It matches ErrStream and
// unwraps to the card error for Code.
type StreamError struct {
	Code   sdcard.ErrorCode
	Sample uint32 // cursor when the failure was seen
}

func (e *StreamError) Error() string {
	return ErrStream.Error() + ": " + e.Code.String()
}

func (e *StreamError) Unwrap() error { return e.Code.Err() }

func (e *StreamError) Is(target error) bool { return target == ErrStream }
