package app_test

import (
	"errors"
	"testing"

	"catprotect/app"
	"catprotect/core"
	"catprotect/hcdi"
	"catprotect/indicator"
	"catprotect/motion"
	"catprotect/player"
	"catprotect/protocol"
	"catprotect/sdcard"
	"catprotect/sdcard/sdsim"
)

type probe struct{ active bool }

func (p *probe) Active() bool { return p.active }

type output struct {
	values   int
	disabled int
}

func (o *output) SetValue(v uint16) { o.values++ }
func (o *output) Commit()           {}
func (o *output) Disable()          { o.disabled++ }

type timer struct{ running bool }

func (t *timer) Start(hz uint32) error { t.running = true; return nil }
func (t *timer) Overflowed() bool      { return true }
func (t *timer) ClearOverflow()        {}
func (t *timer) Stop()                 { t.running = false }

type gpio struct{}

func (gpio) ConfigureOutput(core.GPIOPin) error        { return nil }
func (gpio) ConfigureInputPullUp(core.GPIOPin) error   { return nil }
func (gpio) ConfigureInputPullDown(core.GPIOPin) error { return nil }
func (gpio) SetPin(core.GPIOPin, bool) error           { return nil }
func (gpio) GetPin(core.GPIOPin) (bool, error)         { return false, nil }

type bench struct {
	dev     *app.Device
	sim     *sdsim.Card
	clock   *core.StepClock
	probe   *probe
	out     *output
	timer   *timer
	led     *indicator.LED
	player  *player.Player
	reports []protocol.Report
}

const clipSamples = 512

func newBench(t *testing.T, records []hcdi.Record) *bench {
	t.Helper()
	block0, err := hcdi.Encode(records)
	if err != nil {
		t.Fatal(err)
	}
	img := make([]byte, 8*sdcard.BlockSize)
	copy(img, block0)
	for i := sdcard.BlockSize; i < len(img); i++ {
		img[i] = byte(i)
	}

	b := &bench{
		sim:   sdsim.NewImage(sdcard.TypeSDHC, img),
		clock: &core.StepClock{Step: 10},
		probe: &probe{},
		out:   &output{},
		timer: &timer{},
	}
	card := sdcard.New(b.sim, b.clock, sdcard.Config{})
	b.player, err = player.New(card, b.out, b.timer, b.clock, player.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.led, err = indicator.New(gpio{}, 6, 7)
	if err != nil {
		t.Fatal(err)
	}

	dec := protocol.NewDecoder(func(m *protocol.Message) {
		r, err := protocol.DecodeReport(m.Payload)
		if err != nil {
			t.Errorf("bad report: %v", err)
			return
		}
		b.reports = append(b.reports, r)
	})
	reporter := protocol.NewReporter(func(frame []byte) {
		dec.Receive(protocol.NewSliceInput(frame))
	})

	b.dev = app.New(app.Parts{
		Card:     card,
		Player:   b.player,
		Sensor:   motion.NewSensor(b.probe, 100),
		LED:      b.led,
		Reporter: reporter,
		Clock:    b.clock,
	}, "CAT.RAW")
	return b
}

func defaultRecords() []hcdi.Record {
	return []hcdi.Record{{StartBlock: 1, Length: clipSamples * 2, Name: "CAT.RAW"}}
}

// run advances the clock 10ms per tick.
func (b *bench) run(ticks int) {
	for i := 0; i < ticks; i++ {
		b.clock.Advance(core.TimerFromMS(10))
		b.dev.Tick(b.clock.Now())
	}
}

func (b *bench) ids() []protocol.ReportID {
	ids := make([]protocol.ReportID, len(b.reports))
	for i, r := range b.reports {
		ids[i] = r.ID
	}
	return ids
}

func (b *bench) last(id protocol.ReportID) (protocol.Report, bool) {
	for i := len(b.reports) - 1; i >= 0; i-- {
		if b.reports[i].ID == id {
			return b.reports[i], true
		}
	}
	return protocol.Report{}, false
}

func TestSetupArmsDevice(t *testing.T) {
	b := newBench(t, defaultRecords())
	if err := b.dev.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !b.dev.Ready() || b.dev.Catalog().Len() != 1 {
		t.Fatal("device not armed")
	}
	if b.led.Color() != indicator.Green || b.led.State() != indicator.FlashVerySlow {
		t.Errorf("LED = %v/%v", b.led.Color(), b.led.State())
	}

	want := []protocol.ReportID{
		protocol.ReportBoot, protocol.ReportBringUp, protocol.ReportCatalog, protocol.ReportEntry,
	}
	ids := b.ids()
	if len(ids) != len(want) {
		t.Fatalf("reports = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("report %d = %v, want %v", i, ids[i], want[i])
		}
	}
	if r, _ := b.last(protocol.ReportBringUp); r.Arg(0) != 0 || r.Arg(1) != uint32(sdcard.TypeSDHC) {
		t.Errorf("bringup report = %+v", r)
	}
	if r, _ := b.last(protocol.ReportEntry); r.Text != "CAT.RAW" || r.Arg(0) != 1 {
		t.Errorf("entry report = %+v", r)
	}
}

func TestAlarmPlaysClip(t *testing.T) {
	b := newBench(t, defaultRecords())
	if err := b.dev.Setup(); err != nil {
		t.Fatal(err)
	}

	// Sensor settles, then goes idle after 100ms of quiet
	b.run(15)
	if r, ok := b.last(protocol.ReportMotion); !ok || r.Arg(0) != uint32(motion.Idle) {
		t.Fatalf("sensor not idle: %+v", r)
	}
	if b.dev.Plays() != 0 {
		t.Fatal("played without an alarm")
	}

	b.probe.active = true
	b.run(1)

	if b.dev.Plays() != 1 {
		t.Fatalf("plays = %d, want 1", b.dev.Plays())
	}
	if got := b.player.Stats().Emitted; got != clipSamples+1 {
		t.Errorf("emitted = %d, want %d", got, clipSamples+1)
	}
	if b.out.disabled != 1 || b.timer.running || b.sim.Selected || b.sim.Streaming() {
		t.Errorf("not cleaned up: disabled=%d timer=%v selected=%v streaming=%v",
			b.out.disabled, b.timer.running, b.sim.Selected, b.sim.Streaming())
	}
	start, _ := b.last(protocol.ReportPlayStart)
	if start.Arg(0) != 1 || start.Arg(1) != clipSamples {
		t.Errorf("play start report = %+v", start)
	}
	done, ok := b.last(protocol.ReportPlayDone)
	if !ok || done.Arg(0) != clipSamples+1 {
		t.Errorf("play done report = %+v", done)
	}
	if b.led.Color() != indicator.Green || b.led.State() != indicator.FlashVerySlow {
		t.Errorf("LED not back to armed: %v/%v", b.led.Color(), b.led.State())
	}

	// Still in alarm: no replay until the sensor rearms
	b.run(3)
	if b.dev.Plays() != 1 {
		t.Errorf("replayed while alarm held: %d", b.dev.Plays())
	}
}

func TestStreamErrorReported(t *testing.T) {
	b := newBench(t, defaultRecords())
	if err := b.dev.Setup(); err != nil {
		t.Fatal(err)
	}
	b.sim.ErrorAtBlock = 2

	err := b.dev.PlayClip()
	if !errors.Is(err, player.ErrStream) {
		t.Fatalf("err = %v, want ErrStream", err)
	}
	r, ok := b.last(protocol.ReportPlayError)
	if !ok || r.Arg(0) != uint32(sdcard.CodeMalformedToken) {
		t.Errorf("play error report = %+v", r)
	}
	if _, ok := b.last(protocol.ReportPlayDone); ok {
		t.Error("play done reported after a failure")
	}
	if b.out.disabled != 1 {
		t.Errorf("output disabled %d times", b.out.disabled)
	}
}

func TestMissingClip(t *testing.T) {
	b := newBench(t, []hcdi.Record{{StartBlock: 1, Length: 64, Name: "DOG.RAW"}})
	if err := b.dev.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := b.dev.PlayClip(); !errors.Is(err, player.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, ok := b.last(protocol.ReportPlayStart); ok {
		t.Error("play start reported for a missing clip")
	}
	if r, ok := b.last(protocol.ReportPlayError); !ok || r.Arg(0) != 0 {
		t.Errorf("play error report = %+v", r)
	}
}

func TestSetupFailures(t *testing.T) {
	t.Run("no card", func(t *testing.T) {
		b := newBench(t, defaultRecords())
		b.sim.Absent = true
		if err := b.dev.Setup(); !errors.Is(err, sdcard.ErrTimedOut) {
			t.Fatalf("err = %v, want ErrTimedOut", err)
		}
		if b.led.Color() != indicator.Red || b.led.State() != indicator.BlinkFast {
			t.Errorf("LED = %v/%v", b.led.Color(), b.led.State())
		}
		r, _ := b.last(protocol.ReportBringUp)
		if r.Arg(0) != uint32(sdcard.CodeTimedOut) {
			t.Errorf("bringup report = %+v", r)
		}
		if err := b.dev.PlayClip(); err != app.ErrNotReady {
			t.Errorf("PlayClip err = %v", err)
		}
	})

	t.Run("bad directory", func(t *testing.T) {
		b := newBench(t, defaultRecords())
		b.sim.Device = sdsim.NewBytesBlocks(make([]byte, 4*sdcard.BlockSize))
		if err := b.dev.Setup(); !errors.Is(err, hcdi.ErrBadMagic) {
			t.Fatalf("err = %v, want ErrBadMagic", err)
		}
		r, _ := b.last(protocol.ReportCatalog)
		if r.Arg(0) != uint32(sdcard.CodeUnknownMagic) {
			t.Errorf("catalog report = %+v", r)
		}

		// Alarms are ignored while unarmed
		b.probe.active = true
		b.run(20)
		if b.dev.Plays() != 0 {
			t.Error("played while unarmed")
		}
	})
}
