// Package serial opens the report link between the device and the host
// monitor. On the RP2040 and RP2350 the link is USB CDC, on the Pi a UART.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// DefaultBaud matches the firmware UART. USB CDC ignores it.
const DefaultBaud = 115200

// Port is the report link. The monitor only needs io.ReadCloser, which
// lets its tests run over a pipe.
type Port interface {
	io.ReadWriteCloser
	// Flush drops bytes queued in either direction.
	Flush() error
}

// Config describes one link.
type Config struct {
	Device      string // /dev/ttyACM0, /dev/serial0, COM3
	Baud        int
	ReadTimeout time.Duration // zero blocks
}

// DefaultConfig returns link settings for device. Reads time out so a
// closed monitor notices promptly.
func DefaultConfig(device string) *Config {
	return &Config{Device: device, Baud: DefaultBaud, ReadTimeout: 100 * time.Millisecond}
}

// Open opens the device.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("serial: no device given")
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Device)
	}
	if cfg.ReadTimeout > 0 {
		return timeoutPort{port}, nil
	}
	return port, nil
}

// timeoutPort reports an expired read timeout as an empty read. The
// underlying file surfaces it as io.EOF, which readers take as a closed
// link; a tty that really went away fails with an error instead.
type timeoutPort struct {
	*serial.Port
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if err == io.EOF {
		err = nil
	}
	return n, err
}
