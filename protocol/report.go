package protocol

import "errors"

// ReportID identifies a status report
type ReportID uint8

// Report identifiers and their fields, in wire order
const (
	ReportBoot      ReportID = 1 // version string
	ReportBringUp   ReportID = 2 // error code, card type
	ReportCatalog   ReportID = 3 // error code, entry count
	ReportPlayStart ReportID = 4 // start block, sample count
	ReportPlayDone  ReportID = 5 // emitted, underruns
	ReportPlayError ReportID = 6 // error code, sample index
	ReportMotion    ReportID = 7 // motion status
	ReportEntry     ReportID = 8 // start block, length, name
)

var (
	ErrUnknownReport = errors.New("unknown report id")
	ErrShortReport   = errors.New("report payload too short")
)

// reportArgs is the number of integer fields per report
var reportArgs = [...]uint8{
	ReportBoot:      0,
	ReportBringUp:   2,
	ReportCatalog:   2,
	ReportPlayStart: 2,
	ReportPlayDone:  2,
	ReportPlayError: 2,
	ReportMotion:    1,
	ReportEntry:     2,
}

func (id ReportID) hasText() bool {
	return id == ReportBoot || id == ReportEntry
}

func (id ReportID) String() string {
	switch id {
	case ReportBoot:
		return "boot"
	case ReportBringUp:
		return "bringup"
	case ReportCatalog:
		return "catalog"
	case ReportPlayStart:
		return "play_start"
	case ReportPlayDone:
		return "play_done"
	case ReportPlayError:
		return "play_error"
	case ReportMotion:
		return "motion"
	case ReportEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// Report is one decoded status report
type Report struct {
	ID   ReportID
	Args []uint32
	Text string
}

// Arg returns field i or 0 when absent
func (r Report) Arg(i int) uint32 {
	if i < len(r.Args) {
		return r.Args[i]
	}
	return 0
}

// DecodeReport parses a frame payload.
func DecodeReport(payload []byte) (Report, error) {
	data := payload
	id, err := DecodeVLQUint(&data)
	if err != nil {
		return Report{}, err
	}
	if id == 0 || int(id) >= len(reportArgs) {
		return Report{}, ErrUnknownReport
	}
	r := Report{ID: ReportID(id)}
	n := int(reportArgs[id])
	if n > 0 {
		r.Args = make([]uint32, n)
	}
	for i := 0; i < n; i++ {
		v, err := DecodeVLQUint(&data)
		if err != nil {
			return Report{}, ErrShortReport
		}
		r.Args[i] = v
	}
	if r.ID.hasText() {
		s, err := DecodeVLQString(&data)
		if err != nil {
			return Report{}, ErrShortReport
		}
		r.Text = s
	}
	return r, nil
}

// Sink receives finished frames, e.g. a UART write.
type Sink func(frame []byte)

// Reporter encodes status reports into frames. A nil Reporter or one
// without a sink drops everything.
type Reporter struct {
	enc  Encoder
	sink Sink
}

// NewReporter creates a reporter writing to sink
func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

func (r *Reporter) send(id ReportID, text string, args ...uint32) {
	if r == nil || r.sink == nil {
		return
	}
	frame := r.enc.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(id))
		for _, a := range args {
			EncodeVLQUint(output, a)
		}
		if id.hasText() {
			EncodeVLQString(output, text)
		}
	})
	r.sink(frame)
}

// Boot announces the firmware version
func (r *Reporter) Boot(version string) {
	r.send(ReportBoot, version)
}

// BringUp reports the card initialisation outcome
func (r *Reporter) BringUp(code, cardType uint8) {
	r.send(ReportBringUp, "", uint32(code), uint32(cardType))
}

// Catalog reports the directory build outcome
func (r *Reporter) Catalog(code uint8, entries int) {
	r.send(ReportCatalog, "", uint32(code), uint32(entries))
}

// Entry reports one directory record
func (r *Reporter) Entry(start, length uint32, name string) {
	// Long names would not fit a frame
	if len(name) > 32 {
		name = name[:32]
	}
	r.send(ReportEntry, name, start, length)
}

func (r *Reporter) PlayStart(start, samples uint32) {
	r.send(ReportPlayStart, "", start, samples)
}

func (r *Reporter) PlayDone(emitted, underruns uint32) {
	r.send(ReportPlayDone, "", emitted, underruns)
}

func (r *Reporter) PlayError(code uint8, sample uint32) {
	r.send(ReportPlayError, "", uint32(code), sample)
}

func (r *Reporter) Motion(status uint8) {
	r.send(ReportMotion, "", uint32(status))
}
