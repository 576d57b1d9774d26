package sdcard_test

import (
	"bytes"
	"errors"
	"testing"

	"catprotect/core"
	"catprotect/sdcard"
	"catprotect/sdcard/sdsim"
)

func testImage(blocks int) []byte {
	img := make([]byte, blocks*sdcard.BlockSize)
	for i := range img {
		img[i] = byte(i*7 + i/sdcard.BlockSize)
	}
	return img
}

func newCard(t *testing.T, typ sdcard.CardType, img []byte) (*sdcard.Card, *sdsim.Card) {
	t.Helper()
	sim := sdsim.NewImage(typ, img)
	card := sdcard.New(sim, &core.StepClock{Step: 10}, sdcard.Config{})
	if _, err := card.BringUp(); err != nil {
		t.Fatalf("BringUp: %v", err)
	}
	return card, sim
}

func TestBringUpClassifiesCards(t *testing.T) {
	tests := []struct {
		typ     sdcard.CardType
		wantHCS bool
	}{
		{sdcard.TypeSD1, false},
		{sdcard.TypeSD2, true},
		{sdcard.TypeSDHC, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			sim := sdsim.NewImage(tt.typ, testImage(1))
			sim.InitPolls = 3
			card := sdcard.New(sim, &core.StepClock{Step: 10}, sdcard.Config{})

			desc, err := card.BringUp()
			if err != nil {
				t.Fatalf("BringUp: %v", err)
			}
			if desc.Type != tt.typ {
				t.Errorf("Type = %v, want %v", desc.Type, tt.typ)
			}
			if desc.BlockSize != 512 || desc.LastError != sdcard.CodeNone {
				t.Errorf("descriptor = %+v", desc)
			}
			if sim.HCSRequested() != tt.wantHCS {
				t.Errorf("HCS requested = %v, want %v", sim.HCSRequested(), tt.wantHCS)
			}
			if sim.IdleClocks < 10 {
				t.Errorf("only %d idle bytes before the first command", sim.IdleClocks)
			}
			if len(sim.Rates) != 2 || sim.Rates[0] != 250000 || sim.Rates[1] != 32000000 {
				t.Errorf("rates = %v", sim.Rates)
			}
			if sim.Selected {
				t.Error("card left selected")
			}
		})
	}
}

func TestBringUpEscapesEveryOpCond(t *testing.T) {
	sim := sdsim.NewImage(sdcard.TypeSD2, testImage(1))
	sim.InitPolls = 4
	card := sdcard.New(sim, &core.StepClock{Step: 10}, sdcard.Config{})
	if _, err := card.BringUp(); err != nil {
		t.Fatal(err)
	}

	opConds := 0
	for i, cmd := range sim.Commands {
		if cmd.Index != 41 {
			continue
		}
		opConds++
		if !cmd.App || i == 0 || sim.Commands[i-1].Index != 55 {
			t.Errorf("ACMD41 #%d not preceded by CMD55", opConds)
		}
	}
	if opConds != 5 {
		t.Errorf("ACMD41 sent %d times, want 5", opConds)
	}
}

func TestBringUpFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*sdsim.Card)
		err   error
		code  sdcard.ErrorCode
	}{
		{"absent", func(c *sdsim.Card) { c.Absent = true }, sdcard.ErrTimedOut, sdcard.CodeTimedOut},
		{"never ready", func(c *sdsim.Card) { c.InitPolls = 1 << 30 }, sdcard.ErrTimedOut, sdcard.CodeTimedOut},
		{"bad echo", func(c *sdsim.Card) { c.BadEcho = true }, sdcard.ErrInterfaceCheck, sdcard.CodeInterfaceCheck},
		{"ocr rejected", func(c *sdsim.Card) { c.RejectOCR = true }, sdcard.ErrReadOCR, sdcard.CodeReadOCR},
		{"block length", func(c *sdsim.Card) { c.RejectBlockLen = true }, sdcard.ErrBlockLength, sdcard.CodeBlockLength},
		{"bus", func(c *sdsim.Card) { c.FailTransfer = errors.New("wire cut") }, sdcard.ErrBus, sdcard.CodeBus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := sdsim.NewImage(sdcard.TypeSD2, testImage(1))
			tt.setup(sim)
			card := sdcard.New(sim, &core.StepClock{Step: 1000}, sdcard.Config{})

			desc, err := card.BringUp()
			if !errors.Is(err, tt.err) {
				t.Fatalf("BringUp error = %v, want %v", err, tt.err)
			}
			if desc.LastError != tt.code || card.Descriptor().LastError != tt.code {
				t.Errorf("LastError = %v, want %v", desc.LastError, tt.code)
			}
			if card.Err() != tt.err {
				t.Errorf("Err() = %v", card.Err())
			}
		})
	}
}

func TestBringUpNeedsPowerUpAndCCS(t *testing.T) {
	tests := []struct {
		ocr  uint32
		want sdcard.CardType
	}{
		{0x80FF8000, sdcard.TypeSD2},  // powered up, standard capacity
		{0x40FF8000, sdcard.TypeSD2},  // CCS without power-up status
		{0xC0FF8000, sdcard.TypeSDHC}, // both bits
	}
	for _, tt := range tests {
		sim := sdsim.NewImage(sdcard.TypeSD2, testImage(1))
		sim.OCR = tt.ocr
		card := sdcard.New(sim, &core.StepClock{Step: 10}, sdcard.Config{})

		desc, err := card.BringUp()
		if err != nil {
			t.Fatalf("OCR %#08x: BringUp: %v", tt.ocr, err)
		}
		if desc.Type != tt.want {
			t.Errorf("OCR %#08x: Type = %v, want %v", tt.ocr, desc.Type, tt.want)
		}
	}
}

func TestReadAddressing(t *testing.T) {
	tests := []struct {
		typ     sdcard.CardType
		wantArg uint32
	}{
		{sdcard.TypeSD1, 3 * 512},
		{sdcard.TypeSD2, 3 * 512},
		{sdcard.TypeSDHC, 3},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			img := testImage(4)
			card, sim := newCard(t, tt.typ, img)

			if st := card.SyncStartSingleRead(3); st != sdcard.StatusReady {
				t.Fatalf("start = %v", st)
			}
			last := sim.Commands[len(sim.Commands)-1]
			if last.Index != 17 || last.Argument != tt.wantArg {
				t.Errorf("read command = %+v, want CMD17 arg %d", last, tt.wantArg)
			}

			buf := make([]byte, sdcard.BlockSize)
			st, n := card.SyncReadChunk(buf)
			if st != sdcard.StatusEndOfBlock || n != sdcard.BlockSize {
				t.Fatalf("read = %v, %d", st, n)
			}
			if !bytes.Equal(buf, img[3*512:4*512]) {
				t.Error("wrong block contents")
			}
		})
	}
}

func TestSingleReadInChunks(t *testing.T) {
	img := testImage(3)
	card, sim := newCard(t, sdcard.TypeSDHC, img)
	sim.TokenDelay = 3

	if st := card.SyncStartSingleRead(1); st != sdcard.StatusReady {
		t.Fatalf("start = %v", st)
	}

	var got []byte
	buf := make([]byte, 100)
	for {
		st, n := card.ReadChunk(buf)
		if st == sdcard.StatusReady && n == 0 {
			t.Fatal("Ready without data")
		}
		got = append(got, buf[:n]...)
		if st == sdcard.StatusEndOfBlock {
			break
		}
		if st == sdcard.StatusError {
			t.Fatalf("read failed: %v", card.Err())
		}
	}
	if !bytes.Equal(got, img[512:1024]) {
		t.Errorf("read %d bytes, contents differ", len(got))
	}
	if card.State() != sdcard.StateEnded {
		t.Errorf("state = %d, want ended", card.State())
	}
	if st, n := card.ReadChunk(buf); st != sdcard.StatusEndOfBlock || n != 0 {
		t.Errorf("read after end = %v, %d", st, n)
	}
	if st := card.Stop(); st != sdcard.StatusReady {
		t.Errorf("Stop = %v", st)
	}
	if st := card.Stop(); st != sdcard.StatusReady {
		t.Errorf("second Stop = %v", st)
	}
	if card.State() != sdcard.StateEnded {
		t.Errorf("state after second Stop = %d", card.State())
	}
}

func TestContinuousEndOfBlockThenWait(t *testing.T) {
	img := testImage(4)
	card, sim := newCard(t, sdcard.TypeSD2, img)
	sim.TokenDelay = 2

	if st := card.StartContinuousRead(0); st != sdcard.StatusReady {
		t.Fatalf("start = %v", st)
	}

	buf := make([]byte, sdcard.BlockSize)
	for block := 0; block < 3; block++ {
		st, n := card.SyncReadChunk(buf)
		if st != sdcard.StatusEndOfBlock || n != sdcard.BlockSize {
			t.Fatalf("block %d: %v, %d", block, st, n)
		}
		if !bytes.Equal(buf, img[block*512:(block+1)*512]) {
			t.Errorf("block %d contents differ", block)
		}
		st, n = card.ReadChunk(buf)
		if st != sdcard.StatusWait || n != 0 {
			t.Errorf("after block %d: %v, %d, want wait", block, st, n)
		}
		if card.State() != sdcard.StateWaiting {
			t.Errorf("after block %d: state %d", block, card.State())
		}
	}

	if st := card.Stop(); st != sdcard.StatusReady {
		t.Fatalf("Stop = %v (%v)", st, card.Err())
	}
	if last := sim.Commands[len(sim.Commands)-1]; last.Index != 12 {
		t.Errorf("last command = CMD%d, want CMD12", last.Index)
	}
	if sim.Streaming() || sim.Selected {
		t.Error("card still streaming or selected after Stop")
	}
}

func TestContinuousWithoutTokenDelayNeverEndsTwice(t *testing.T) {
	card, _ := newCard(t, sdcard.TypeSDHC, testImage(4))
	if st := card.StartContinuousRead(0); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	buf := make([]byte, 64)
	prev := sdcard.StatusReady
	for i := 0; i < 64; i++ {
		st, n := card.ReadChunk(buf)
		if st == sdcard.StatusReady && n == 0 {
			t.Fatal("Ready without data")
		}
		if prev == sdcard.StatusEndOfBlock && st == sdcard.StatusEndOfBlock {
			t.Fatalf("call %d: EndOfBlock twice in a row", i)
		}
		prev = st
	}
	card.Stop()
}

func TestReadFast4Continuous(t *testing.T) {
	img := testImage(3)
	card, sim := newCard(t, sdcard.TypeSDHC, img)
	sim.TokenDelay = 1
	sim.BusyAfterStop = 5

	if st := card.StartContinuousRead(0); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	card.BeginFast()

	var got []byte
	var four [4]byte
	for len(got) < len(img) {
		switch st := card.ReadFast4(&four); st {
		case sdcard.StatusReady:
			got = append(got, four[:]...)
		case sdcard.StatusWait:
		default:
			t.Fatalf("ReadFast4 = %v after %d bytes", st, len(got))
		}
	}
	if !bytes.Equal(got, img) {
		t.Error("streamed contents differ")
	}
	if st := card.Stop(); st != sdcard.StatusReady {
		t.Errorf("Stop = %v (%v)", st, card.Err())
	}
	if sim.Selected {
		t.Error("Stop left the card selected")
	}
}

func TestReadFast4SingleEnds(t *testing.T) {
	card, _ := newCard(t, sdcard.TypeSD2, testImage(1))
	if st := card.SyncStartSingleRead(0); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	card.BeginFast()

	var four [4]byte
	ready := 0
	st := sdcard.StatusWait
	for i := 0; i < 1000 && st != sdcard.StatusEndOfBlock; i++ {
		st = card.ReadFast4(&four)
		if st == sdcard.StatusReady {
			ready++
		}
	}
	if st != sdcard.StatusEndOfBlock || ready != 128 {
		t.Fatalf("final status %v after %d reads", st, ready)
	}
	if st := card.ReadFast4(&four); st != sdcard.StatusEndOfBlock {
		t.Errorf("read after end = %v", st)
	}
	card.Stop()
}

func TestMalformedTokenEndsSession(t *testing.T) {
	card, sim := newCard(t, sdcard.TypeSDHC, testImage(4))
	sim.ErrorAtBlock = 2

	if st := card.StartContinuousRead(0); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	card.BeginFast()

	var four [4]byte
	var st sdcard.Status
	ready := 0
	for i := 0; i < 1000; i++ {
		st = card.ReadFast4(&four)
		if st == sdcard.StatusReady {
			ready++
		}
		if st == sdcard.StatusError {
			break
		}
	}
	if st != sdcard.StatusError || ready != 128 {
		t.Fatalf("status %v after %d reads", st, ready)
	}
	if card.Descriptor().LastError != sdcard.CodeMalformedToken {
		t.Errorf("LastError = %v", card.Descriptor().LastError)
	}
	if card.State() != sdcard.StateEnded {
		t.Errorf("state = %d", card.State())
	}
	if st := card.ReadFast4(&four); st != sdcard.StatusError {
		t.Errorf("read after failure = %v", st)
	}
	card.Stop()
	if card.State() != sdcard.StateEnded {
		t.Errorf("state after Stop = %d", card.State())
	}
}

func TestStopDrainsSingleRead(t *testing.T) {
	img := testImage(3)
	card, _ := newCard(t, sdcard.TypeSD2, img)

	if st := card.SyncStartSingleRead(0); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	buf := make([]byte, 10)
	if st, _ := card.SyncReadChunk(buf); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	if st := card.Stop(); st != sdcard.StatusReady {
		t.Fatalf("Stop = %v", st)
	}

	if st := card.SyncStartSingleRead(2); st != sdcard.StatusReady {
		t.Fatalf("restart = %v", st)
	}
	block := make([]byte, sdcard.BlockSize)
	if st, n := card.SyncReadChunk(block); st != sdcard.StatusEndOfBlock || n != sdcard.BlockSize {
		t.Fatalf("read = %v, %d", st, n)
	}
	if !bytes.Equal(block, img[1024:]) {
		t.Error("read after drain returned wrong data")
	}
}

func TestStartReadErrors(t *testing.T) {
	card, sim := newCard(t, sdcard.TypeSDHC, testImage(2))

	sim.BusyPolls = 1
	if st := card.StartSingleRead(0); st != sdcard.StatusWait {
		t.Errorf("busy card: %v, want wait", st)
	}
	if st := card.StartSingleRead(0); st != sdcard.StatusReady {
		t.Fatalf("start = %v", st)
	}
	if st := card.StartContinuousRead(1); st != sdcard.StatusError {
		t.Errorf("second session: %v", st)
	}
	if card.Descriptor().LastError != sdcard.CodeSessionOpen {
		t.Errorf("LastError = %v", card.Descriptor().LastError)
	}
	card.Stop()

	sim.RejectRead = true
	if st := card.StartContinuousRead(0); st != sdcard.StatusError {
		t.Errorf("rejected read: %v", st)
	}
	if card.Descriptor().LastError != sdcard.CodeCommandRejected {
		t.Errorf("LastError = %v", card.Descriptor().LastError)
	}
	if st := card.Stop(); st != sdcard.StatusReady {
		t.Errorf("Stop without session = %v", st)
	}
}

func TestReadWithoutSession(t *testing.T) {
	card, _ := newCard(t, sdcard.TypeSD2, testImage(1))
	var four [4]byte
	if st := card.ReadFast4(&four); st != sdcard.StatusError {
		t.Errorf("ReadFast4 = %v", st)
	}
	if st, _ := card.ReadChunk(make([]byte, 4)); st != sdcard.StatusError {
		t.Errorf("ReadChunk = %v", st)
	}
	if card.Descriptor().LastError != sdcard.CodeNoSession {
		t.Errorf("LastError = %v", card.Descriptor().LastError)
	}
}

func TestBusFailureDuringRead(t *testing.T) {
	card, sim := newCard(t, sdcard.TypeSDHC, testImage(2))
	if st := card.StartContinuousRead(0); st != sdcard.StatusReady {
		t.Fatal(st)
	}
	sim.FailTransfer = errors.New("card removed")
	card.BeginFast()
	var four [4]byte
	if st := card.ReadFast4(&four); st != sdcard.StatusError {
		t.Errorf("ReadFast4 = %v", st)
	}
	if card.Descriptor().LastError != sdcard.CodeBus {
		t.Errorf("LastError = %v", card.Descriptor().LastError)
	}
	if st := card.Stop(); st != sdcard.StatusError {
		t.Errorf("Stop = %v", st)
	}
	if card.State() != sdcard.StateEnded {
		t.Error("session still open")
	}
}

func TestBusFailureMidBlockReturnsNoBytes(t *testing.T) {
	card, sim := newCard(t, sdcard.TypeSDHC, testImage(2))
	if st := card.SyncStartSingleRead(1); st != sdcard.StatusReady {
		t.Fatalf("start = %v", st)
	}
	buf := make([]byte, 16)
	if st, n := card.SyncReadChunk(buf); st != sdcard.StatusReady || n != 16 {
		t.Fatalf("first chunk = %v, %d", st, n)
	}

	sim.FailTransfer = errors.New("card removed")
	st, n := card.ReadChunk(make([]byte, 64))
	if st != sdcard.StatusError || n != 0 {
		t.Errorf("ReadChunk = %v, %d; want error with no bytes", st, n)
	}
	if card.Descriptor().LastError != sdcard.CodeBus {
		t.Errorf("LastError = %v", card.Descriptor().LastError)
	}
}
