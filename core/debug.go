package core

// DebugWriter emits one line of debug text.
type DebugWriter func(string)

// Event is one entry of the post-mortem log. Field meaning depends on
// Kind; see the Evt constants.
type Event struct {
	Kind   uint8
	Code   uint8
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

const (
	EvtBringUp     = 1 // Code=error, Value1=card type
	EvtPlayStart   = 3 // Value1=start block, Value2=samples
	EvtPlayDone    = 4 // Value1=emitted, Value2=underruns
	EvtStreamError = 5 // Code=error, Value1=sample index
	EvtMotion      = 6 // Code=sensor status
	EvtStop        = 7 // Code=error of a failed CMD12
)

// EventRingSize is how many events survive for DumpEvents.
const EventRingSize = 32

var eventNames = [...]string{
	EvtBringUp:     "BRINGUP",
	EvtPlayStart:   "PLAY_START",
	EvtPlayDone:    "PLAY_DONE",
	EvtStreamError: "STREAM_ERR!",
	EvtMotion:      "MOTION",
	EvtStop:        "STOP_ERR!",
}

var (
	writeDebug   DebugWriter = func(string) {}
	debugEnabled bool
	debugQueue   chan string

	events    [EventRingSize]Event
	eventNext int
)

// SetDebugWriter routes debug output, usually to a UART.
func SetDebugWriter(w DebugWriter) {
	writeDebug = w
}

// SetDebugEnabled turns DebugPrintln on or off. Synchronous output at
// UART speed costs samples; leave it off while timing playback.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// InitAsyncDebug moves debug output to a goroutine. Lines that find the
// queue full are dropped so the sample loop never waits on the UART.
func InitAsyncDebug() {
	debugQueue = make(chan string, 16)
	go func() {
		for line := range debugQueue {
			writeDebug(line)
		}
	}()
}

// DebugPrintln writes msg when debugging is enabled.
func DebugPrintln(msg string) {
	if !debugEnabled {
		return
	}
	if debugQueue == nil {
		writeDebug(msg)
		return
	}
	select {
	case debugQueue <- msg:
	default:
	}
}

// RecordEvent appends to the event ring, overwriting the oldest entry.
// It never blocks or allocates.
func RecordEvent(kind, code uint8, clock, value1, value2 uint32) {
	events[eventNext] = Event{Kind: kind, Code: code, Clock: clock, Value1: value1, Value2: value2}
	eventNext = (eventNext + 1) % EventRingSize
}

// Events returns the recorded events, oldest first.
func Events() []Event {
	out := make([]Event, 0, EventRingSize)
	for i := 0; i < EventRingSize; i++ {
		if e := events[(eventNext+i)%EventRingSize]; e.Kind != 0 {
			out = append(out, e)
		}
	}
	return out
}

// EventName labels an event kind for dumps.
func EventName(kind uint8) string {
	if int(kind) < len(eventNames) && eventNames[kind] != "" {
		return eventNames[kind]
	}
	return "UNKNOWN"
}

// DumpEvents writes the ring through the debug writer whether or not
// debugging is enabled. Targets call it after a failure.
func DumpEvents() {
	writeDebug("[EVENTS] dump")
	for _, e := range Events() {
		writeDebug("[EVENTS] " + EventName(e.Kind) +
			" code=" + Itoa(int(e.Code)) +
			" clock=" + Utoa(e.Clock) +
			" v1=" + Utoa(e.Value1) +
			" v2=" + Utoa(e.Value2))
	}
	writeDebug("[EVENTS] end")
}

// ClearEvents empties the ring.
func ClearEvents() {
	events = [EventRingSize]Event{}
	eventNext = 0
}
