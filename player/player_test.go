package player

import (
	"errors"
	"testing"

	"catprotect/core"
	"catprotect/hcdi"
	"catprotect/sdcard"
)

// rig stands in for the card, the output stage and the timer at once so
// the ring occupancy can be checked from outside the player.
type rig struct {
	capacity, margin int

	failAfter  int // samples delivered before ReadFast4 fails, <0 never
	waitEvery  int // every n-th ReadFast4 returns Wait
	stallFrom  int // ReadFast4 calls in [stallFrom, stallFrom+stallLen) return Wait
	stallLen   int
	startWaits int
	startFail  bool
	timerFail  bool
	stopFail   bool

	code       sdcard.ErrorCode
	startBlock uint32
	starts     int
	delivered  int
	readCalls  int

	pending   uint16
	committed []uint16
	ops       []string
	inSteady  bool
	edge      bool // a SetValue right after ClearOverflow pops the ring
	consumed  int
	violation string

	timerStarts, timerStops int
	timerHz                 uint32
	streamStops             int
	disables                int
}

func newRig() *rig {
	return &rig{capacity: 256, margin: 4, failAfter: -1}
}

func (r *rig) StartContinuousRead(block uint32) sdcard.Status {
	if r.startWaits > 0 {
		r.startWaits--
		return sdcard.StatusWait
	}
	if r.startFail {
		r.code = sdcard.CodeCommandRejected
		return sdcard.StatusError
	}
	r.starts++
	r.startBlock = block
	return sdcard.StatusReady
}

func (r *rig) BeginFast() {}

func (r *rig) ReadFast4(dst *[4]byte) sdcard.Status {
	r.readCalls++
	if r.inSteady {
		buffered := r.delivered - r.consumed
		if buffered >= r.capacity-r.margin && r.violation == "" {
			r.violation = "top-up issued inside the margin"
		}
	}
	if r.waitEvery > 0 && r.readCalls%r.waitEvery == 0 {
		return sdcard.StatusWait
	}
	if r.readCalls >= r.stallFrom && r.readCalls < r.stallFrom+r.stallLen {
		return sdcard.StatusWait
	}
	if r.failAfter >= 0 && r.delivered >= r.failAfter {
		r.code = sdcard.CodeMalformedToken
		return sdcard.StatusError
	}
	for i := 0; i < 2; i++ {
		s := uint16(r.delivered&0xFFF) << 4
		dst[2*i] = byte(s)
		dst[2*i+1] = byte(s >> 8)
		r.delivered++
	}
	return sdcard.StatusReady
}

func (r *rig) Stop() sdcard.Status {
	r.streamStops++
	r.ops = append(r.ops, "stream-stop")
	if r.stopFail {
		r.code = sdcard.CodeStopRejected
		return sdcard.StatusError
	}
	return sdcard.StatusReady
}

func (r *rig) RecordError(code sdcard.ErrorCode) { r.code = code }

func (r *rig) Descriptor() sdcard.Descriptor {
	return sdcard.Descriptor{Type: sdcard.TypeSDHC, BlockSize: 512, LastError: r.code}
}

func (r *rig) SetValue(v uint16) {
	r.pending = v
	if r.edge {
		r.edge = false
		r.consumed++
		if r.delivered-r.consumed < 0 && r.violation == "" {
			r.violation = "sample consumed before it was read"
		}
	}
}

func (r *rig) Commit() {
	r.committed = append(r.committed, r.pending)
}

func (r *rig) Disable() {
	r.disables++
	r.ops = append(r.ops, "disable")
}

func (r *rig) Start(hz uint32) error {
	if r.timerFail {
		return errors.New("no timer")
	}
	r.timerStarts++
	r.timerHz = hz
	r.ops = append(r.ops, "timer-start")
	return nil
}

func (r *rig) Overflowed() bool { return true }

func (r *rig) ClearOverflow() {
	r.inSteady = true
	r.edge = true
}

// timerView gives the rig a SampleTimer Stop next to the Streamer one.
type timerView struct{ *rig }

func (t timerView) Stop() {
	t.timerStops++
	t.ops = append(t.ops, "timer-stop")
}

func newTestPlayer(t *testing.T, r *rig, cfg Config) *Player {
	t.Helper()
	p, err := New(r, r, timerView{r}, &core.StepClock{Step: 50}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func fadeOutSteps(cfg Config) int {
	return int(cfg.FadeLevel/cfg.FadeStep) + 1
}

func TestPlayEmitsCountPlusOne(t *testing.T) {
	r := newRig()
	r.waitEvery = 7
	cfg := DefaultConfig()
	p := newTestPlayer(t, r, cfg)

	if err := p.Play(100, 1024); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if r.startBlock != 100 || r.timerHz != 22050 {
		t.Errorf("start block %d, timer %dHz", r.startBlock, r.timerHz)
	}
	st := p.Stats()
	if st.Emitted != 1025 || st.Underruns != 0 {
		t.Errorf("stats = %+v", st)
	}

	fadeIn := int(cfg.FadeLevel / cfg.FadeStep)
	c := r.committed
	if len(c) != fadeIn+1+1025+fadeOutSteps(cfg) {
		t.Fatalf("%d commits", len(c))
	}
	for i := 0; i < fadeIn; i++ {
		if c[i] != uint16(i)*cfg.FadeStep {
			t.Fatalf("fade-in step %d = %#x", i, c[i])
		}
	}
	samples := c[fadeIn+1 : fadeIn+1+1025]
	for i, v := range samples {
		if v != uint16(i) {
			t.Fatalf("sample %d = %d", i, v)
		}
	}
	tail := c[fadeIn+1+1025:]
	if tail[0] != cfg.FadeLevel || tail[len(tail)-1] != 0 {
		t.Errorf("fade-out runs %#x..%#x", tail[0], tail[len(tail)-1])
	}
	for i := 1; i < len(tail); i++ {
		if tail[i] >= tail[i-1] {
			t.Fatalf("fade-out not descending at %d: %#x after %#x", i, tail[i], tail[i-1])
		}
	}

	if r.disables != 1 || r.timerStops != 1 || r.streamStops != 1 {
		t.Errorf("disable=%d timer-stop=%d stream-stop=%d", r.disables, r.timerStops, r.streamStops)
	}
	want := []string{"timer-start", "timer-stop", "stream-stop", "disable"}
	if len(r.ops) != len(want) {
		t.Fatalf("ops = %v", r.ops)
	}
	for i := range want {
		if r.ops[i] != want[i] {
			t.Errorf("ops = %v, want %v", r.ops, want)
			break
		}
	}
	if r.violation != "" {
		t.Error(r.violation)
	}
}

func TestPlayErrorDuringPrefill(t *testing.T) {
	r := newRig()
	r.failAfter = 50
	p := newTestPlayer(t, r, DefaultConfig())

	err := p.Play(100, 1024)
	if !errors.Is(err, ErrStream) {
		t.Fatalf("err = %v, want ErrStream", err)
	}
	if !errors.Is(err, sdcard.ErrMalformedToken) {
		t.Errorf("err = %v does not unwrap to the card error", err)
	}
	var se *StreamError
	if !errors.As(err, &se) || se.Code != sdcard.CodeMalformedToken {
		t.Errorf("StreamError = %+v", se)
	}
	if len(r.committed) != 0 {
		t.Errorf("%d values committed, want none", len(r.committed))
	}
	if r.disables != 1 || r.streamStops != 1 || r.timerStarts != 0 {
		t.Errorf("disable=%d stream-stop=%d timer-start=%d", r.disables, r.streamStops, r.timerStarts)
	}
}

func TestPlayErrorDuringSteadyLoopSkipsFadeOut(t *testing.T) {
	r := newRig()
	r.failAfter = 600
	cfg := DefaultConfig()
	p := newTestPlayer(t, r, cfg)

	err := p.Play(100, 1024)
	if !errors.Is(err, ErrStream) {
		t.Fatalf("err = %v, want ErrStream", err)
	}
	for _, v := range r.committed {
		if v >= cfg.FadeLevel {
			t.Fatalf("fade-out value %#x committed on the error path", v)
		}
	}
	if last := r.committed[len(r.committed)-1]; last == 0 {
		t.Error("output ramped to zero on the error path")
	}
	if r.disables != 1 || r.timerStops != 1 || r.streamStops != 1 {
		t.Errorf("disable=%d timer-stop=%d stream-stop=%d", r.disables, r.timerStops, r.streamStops)
	}
	if r.ops[len(r.ops)-1] != "disable" {
		t.Errorf("ops = %v", r.ops)
	}
	if got := p.Stats().Emitted; got == 0 || got >= 1025 {
		t.Errorf("emitted %d", got)
	}
}

func TestStreamErrorSurvivesRejectedStop(t *testing.T) {
	r := newRig()
	r.failAfter = 600
	r.stopFail = true
	p := newTestPlayer(t, r, DefaultConfig())

	err := p.Play(100, 1024)
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StreamError", err)
	}
	if se.Code != sdcard.CodeMalformedToken {
		t.Errorf("StreamError.Code = %v", se.Code)
	}
	if r.streamStops != 1 {
		t.Errorf("stream-stop=%d", r.streamStops)
	}
	if got := r.Descriptor().LastError; got != sdcard.CodeMalformedToken {
		t.Errorf("LastError = %v, want %v", got, sdcard.CodeMalformedToken)
	}
}

func TestRejectedStopAfterCleanPlayIsKept(t *testing.T) {
	r := newRig()
	r.stopFail = true
	p := newTestPlayer(t, r, DefaultConfig())

	if err := p.Play(100, 64); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := r.Descriptor().LastError; got != sdcard.CodeStopRejected {
		t.Errorf("LastError = %v, want %v", got, sdcard.CodeStopRejected)
	}
}

func TestRingMarginHolds(t *testing.T) {
	r := newRig()
	r.capacity, r.margin = 64, 8
	r.waitEvery = 3
	cfg := DefaultConfig()
	cfg.Capacity, cfg.Margin = 64, 8
	p := newTestPlayer(t, r, cfg)

	if err := p.Play(1, 2000); err != nil {
		t.Fatal(err)
	}
	if r.violation != "" {
		t.Error(r.violation)
	}
	st := p.Stats()
	if st.MaxBuffered > 64 || st.TopUps == 0 {
		t.Errorf("stats = %+v", st)
	}
	// Fade values are not ring samples
	if r.consumed < int(st.Emitted) || r.consumed > int(st.Emitted)+2 {
		t.Errorf("consumed %d samples for %d emitted", r.consumed, st.Emitted)
	}
}

func TestUnderrunHoldsLastValue(t *testing.T) {
	r := newRig()
	r.stallFrom = 200
	r.stallLen = 600
	p := newTestPlayer(t, r, DefaultConfig())

	if err := p.Play(1, 1024); err != nil {
		t.Fatal(err)
	}
	st := p.Stats()
	if st.Underruns == 0 || st.Emitted != 1025 {
		t.Fatalf("stats = %+v", st)
	}

	fadeIn := int(DefaultConfig().FadeLevel / DefaultConfig().FadeStep)
	steady := r.committed[fadeIn+1 : len(r.committed)-fadeOutSteps(DefaultConfig())]
	next := uint16(0)
	for _, v := range steady {
		switch v {
		case next:
			next++
		case next - 1:
		default:
			t.Fatalf("sample %d out of order after %d", v, next-1)
		}
	}
	if next != 1025 {
		t.Errorf("played %d distinct samples", next)
	}
	if r.violation != "" {
		t.Error(r.violation)
	}
}

type countingWatchdog struct{ n int }

func (w *countingWatchdog) Update() { w.n++ }

func TestWatchdogKicked(t *testing.T) {
	r := newRig()
	cfg := DefaultConfig()
	cfg.WatchdogEvery = 256
	p := newTestPlayer(t, r, cfg)
	wd := &countingWatchdog{}
	p.SetWatchdog(wd)

	if err := p.Play(1, 1024); err != nil {
		t.Fatal(err)
	}
	if wd.n != 4 {
		t.Errorf("watchdog kicked %d times, want 4", wd.n)
	}
}

func TestStartWaitsThenPlays(t *testing.T) {
	r := newRig()
	r.startWaits = 3
	p := newTestPlayer(t, r, DefaultConfig())
	if err := p.Play(7, 10); err != nil {
		t.Fatal(err)
	}
	if r.starts != 1 || r.startBlock != 7 {
		t.Errorf("starts=%d block=%d", r.starts, r.startBlock)
	}
	if p.Stats().Emitted != 11 {
		t.Errorf("emitted %d", p.Stats().Emitted)
	}
}

func TestStartFailure(t *testing.T) {
	r := newRig()
	r.startFail = true
	p := newTestPlayer(t, r, DefaultConfig())

	err := p.Play(7, 10)
	if !errors.Is(err, ErrStream) || !errors.Is(err, sdcard.ErrCommandRejected) {
		t.Fatalf("err = %v", err)
	}
	if r.streamStops != 0 || r.disables != 1 {
		t.Errorf("stream-stop=%d disable=%d", r.streamStops, r.disables)
	}
}

func TestTimerFailure(t *testing.T) {
	r := newRig()
	r.timerFail = true
	p := newTestPlayer(t, r, DefaultConfig())

	if err := p.Play(7, 10); !errors.Is(err, ErrTimer) {
		t.Fatalf("err = %v", err)
	}
	if r.timerStops != 0 || r.streamStops != 1 || r.disables != 1 {
		t.Errorf("timer-stop=%d stream-stop=%d disable=%d", r.timerStops, r.streamStops, r.disables)
	}
}

type fakeClaimer struct {
	claimed  bool
	releases int
}

func (c *fakeClaimer) Claim() error {
	if c.claimed {
		return core.ErrBusClaimed
	}
	c.claimed = true
	return nil
}

func (c *fakeClaimer) Release() error {
	c.claimed = false
	c.releases++
	return nil
}

func TestClaimHeldForPlay(t *testing.T) {
	r := newRig()
	r.failAfter = 600
	p := newTestPlayer(t, r, DefaultConfig())
	cl := &fakeClaimer{}
	p.SetClaimer(cl)

	if err := p.Play(1, 1024); !errors.Is(err, ErrStream) {
		t.Fatalf("err = %v", err)
	}
	if cl.claimed || cl.releases != 1 {
		t.Errorf("claimed=%v releases=%d", cl.claimed, cl.releases)
	}

	cl.claimed = true
	if err := p.Play(1, 10); !errors.Is(err, ErrBusy) {
		t.Errorf("claimed bus: err = %v", err)
	}
}

func TestPlayNotReentrant(t *testing.T) {
	r := newRig()
	p := newTestPlayer(t, r, DefaultConfig())
	p.busy = true
	if err := p.Play(1, 10); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v", err)
	}
	if r.starts != 0 || r.disables != 0 {
		t.Error("busy player touched the hardware")
	}
}

func TestPlayNamed(t *testing.T) {
	block, err := hcdi.Encode([]hcdi.Record{
		{StartBlock: 100, Length: 2048, Name: "A.RAW"},
		{StartBlock: 200, Length: 64, Name: "B.RAW"},
	})
	if err != nil {
		t.Fatal(err)
	}
	cat, err := hcdi.Parse(block)
	if err != nil {
		t.Fatal(err)
	}

	r := newRig()
	p := newTestPlayer(t, r, DefaultConfig())
	if err := p.PlayNamed(cat, "B.RAW"); err != nil {
		t.Fatal(err)
	}
	if r.startBlock != 200 || p.Stats().Emitted != 33 {
		t.Errorf("block=%d emitted=%d", r.startBlock, p.Stats().Emitted)
	}
	if err := p.PlayNamed(cat, "C.RAW"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing clip: %v", err)
	}
	if err := p.PlayNamed(nil, "A.RAW"); !errors.Is(err, ErrNotFound) {
		t.Errorf("nil catalog: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.Capacity = 100 },
		func(c *Config) { c.Margin = 1 },
		func(c *Config) { c.Margin = c.Capacity },
		func(c *Config) { c.FadeStep = 0 },
		func(c *Config) { c.SampleRate = 0 },
		func(c *Config) { c.FadeLevel = 0x1000 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		r := newRig()
		if _, err := New(r, r, timerView{r}, &core.StepClock{Step: 1}, cfg); !errors.Is(err, ErrBadConfig) {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
}

func TestRingWraps(t *testing.T) {
	r := newRing(4)
	r.buffered = 0
	r.push(&[4]byte{0x01, 0x00, 0x02, 0x00}, 3)
	if r.buf[3] != 1 || r.buf[0] != 2 {
		t.Errorf("buf = %v", r.buf)
	}
	if got := r.pop(3); got != 1 || r.buffered != 1 {
		t.Errorf("pop = %d, buffered %d", got, r.buffered)
	}
	if got := r.pop(4); got != 2 || r.buffered != 0 {
		t.Errorf("pop = %d, buffered %d", got, r.buffered)
	}
}
