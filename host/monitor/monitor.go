// Package monitor reads status reports from a device over its serial link.
package monitor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"catprotect/motion"
	"catprotect/protocol"
	"catprotect/sdcard"
)

// Handler receives every decoded report.
type Handler func(r protocol.Report)

// FrameTap sees the raw bytes of every valid frame, e.g. for a hex dump.
type FrameTap func(m *protocol.Message)

// Stats counts link health.
type Stats struct {
	Frames  uint32
	Lost    uint32
	Corrupt uint32
	Invalid uint32 // frames whose payload was not a known report
}

// Monitor owns the read side of the report link.
type Monitor struct {
	port    io.ReadCloser
	input   *protocol.RxBuffer
	decoder *protocol.Decoder
	handler Handler
	tap     FrameTap

	mu      sync.Mutex
	invalid uint32
	readErr error

	reports  chan protocol.Report
	stopChan chan struct{}
	doneChan chan struct{}
}

// New starts reading port in the background. Reports go to handler when
// given, otherwise to the Reports channel.
func New(port io.ReadCloser, handler Handler) *Monitor {
	m := &Monitor{
		port:     port,
		input:    protocol.NewRxBuffer(512),
		handler:  handler,
		reports:  make(chan protocol.Report, 32),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	m.decoder = protocol.NewDecoder(m.dispatch)
	go m.readLoop()
	return m
}

// SetTap installs a raw frame hook. Call before the first frame arrives.
func (m *Monitor) SetTap(tap FrameTap) {
	m.mu.Lock()
	m.tap = tap
	m.mu.Unlock()
}

// Reports delivers reports when no handler was given. It is closed when
// the read loop ends.
func (m *Monitor) Reports() <-chan protocol.Report {
	return m.reports
}

// Done is closed once the read loop has ended.
func (m *Monitor) Done() <-chan struct{} {
	return m.doneChan
}

// Err returns the error that ended the read loop, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readErr
}

// Stats returns a snapshot of the link counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Frames:  m.decoder.Frames,
		Lost:    m.decoder.Lost,
		Corrupt: m.decoder.Corrupt,
		Invalid: m.invalid,
	}
}

// Wait returns the next report or an error after timeout.
func (m *Monitor) Wait(timeout time.Duration) (protocol.Report, error) {
	select {
	case r, ok := <-m.reports:
		if !ok {
			return protocol.Report{}, errors.New("monitor: link closed")
		}
		return r, nil
	case <-time.After(timeout):
		return protocol.Report{}, errors.New("monitor: timeout waiting for report")
	}
}

// Close stops the read loop and closes the port.
func (m *Monitor) Close() error {
	select {
	case <-m.stopChan:
	default:
		close(m.stopChan)
	}
	err := m.port.Close()
	<-m.doneChan
	return errors.Wrap(err, "close report link")
}

func (m *Monitor) readLoop() {
	defer close(m.doneChan)
	defer close(m.reports)

	buffer := make([]byte, 256)
	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		n, err := m.port.Read(buffer)
		if n > 0 {
			m.mu.Lock()
			m.input.Write(buffer[:n])
			m.decoder.Receive(m.input)
			m.mu.Unlock()
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			select {
			case <-m.stopChan:
				return
			default:
			}
			m.mu.Lock()
			m.readErr = errors.Wrap(err, "read report link")
			m.mu.Unlock()
			return
		}
	}
}

// dispatch runs with mu held.
func (m *Monitor) dispatch(msg *protocol.Message) {
	if m.tap != nil {
		m.tap(msg)
	}
	r, err := protocol.DecodeReport(msg.Payload)
	if err != nil {
		m.invalid++
		return
	}
	if m.handler != nil {
		m.handler(r)
		return
	}
	select {
	case m.reports <- r:
	case <-m.stopChan:
	}
}

// Format renders a report as one human readable line.
func Format(r protocol.Report) string {
	switch r.ID {
	case protocol.ReportBoot:
		return fmt.Sprintf("boot: firmware %s", r.Text)
	case protocol.ReportBringUp:
		if r.Arg(0) != 0 {
			return fmt.Sprintf("card: bring-up failed: %s", codeText(r.Arg(0)))
		}
		return fmt.Sprintf("card: ready, %s", cardTypeText(r.Arg(1)))
	case protocol.ReportCatalog:
		if r.Arg(0) != 0 {
			return fmt.Sprintf("catalog: failed: %s", codeText(r.Arg(0)))
		}
		return fmt.Sprintf("catalog: %d entries", r.Arg(1))
	case protocol.ReportEntry:
		return fmt.Sprintf("entry: %-32s block %d, %d bytes", r.Text, r.Arg(0), r.Arg(1))
	case protocol.ReportPlayStart:
		return fmt.Sprintf("play: start block %d, %d samples", r.Arg(0), r.Arg(1))
	case protocol.ReportPlayDone:
		return fmt.Sprintf("play: done, %d samples emitted, %d underruns", r.Arg(0), r.Arg(1))
	case protocol.ReportPlayError:
		return fmt.Sprintf("play: aborted at sample %d: %s", r.Arg(1), codeText(r.Arg(0)))
	case protocol.ReportMotion:
		return fmt.Sprintf("motion: %s", motion.Status(r.Arg(0)))
	}
	return fmt.Sprintf("%s %v", r.ID, r.Args)
}

func codeText(code uint32) string {
	if code > 0xFF {
		return fmt.Sprintf("code %d", code)
	}
	return sdcard.ErrorCode(code).String()
}

func cardTypeText(t uint32) string {
	if t > 0xFF {
		return fmt.Sprintf("card type %d", t)
	}
	return sdcard.CardType(t).String()
}
