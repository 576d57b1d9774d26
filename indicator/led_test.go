package indicator

import (
	"testing"

	"catprotect/core"
)

const (
	pinRed   core.GPIOPin = 6
	pinGreen core.GPIOPin = 7
)

type mockGPIODriver struct {
	pins map[core.GPIOPin]bool
}

func newMockGPIODriver() *mockGPIODriver {
	return &mockGPIODriver{pins: make(map[core.GPIOPin]bool)}
}

func (m *mockGPIODriver) ConfigureOutput(core.GPIOPin) error        { return nil }
func (m *mockGPIODriver) ConfigureInputPullUp(core.GPIOPin) error   { return nil }
func (m *mockGPIODriver) ConfigureInputPullDown(core.GPIOPin) error { return nil }
func (m *mockGPIODriver) SetPin(pin core.GPIOPin, v bool) error {
	m.pins[pin] = v
	return nil
}
func (m *mockGPIODriver) GetPin(pin core.GPIOPin) (bool, error) { return m.pins[pin], nil }

func ms(v uint32) uint32 { return core.TimerFromMS(v) }

func newLED(t *testing.T) (*LED, *mockGPIODriver) {
	t.Helper()
	g := newMockGPIODriver()
	l, err := New(g, pinRed, pinGreen)
	if err != nil {
		t.Fatal(err)
	}
	return l, g
}

func TestSolidColours(t *testing.T) {
	l, g := newLED(t)
	l.Set(Green, On, 0)
	if g.pins[pinRed] || !g.pins[pinGreen] {
		t.Errorf("green on: %v", g.pins)
	}
	l.Set(Red, On, 0)
	if !g.pins[pinRed] || g.pins[pinGreen] {
		t.Errorf("red on: %v", g.pins)
	}
	l.Set(Red, Off, 0)
	if g.pins[pinRed] || g.pins[pinGreen] || l.Lit() {
		t.Errorf("off: %v", g.pins)
	}
}

func TestBlinkFast(t *testing.T) {
	l, g := newLED(t)
	l.Set(Red, BlinkFast, ms(1000))
	if !g.pins[pinRed] {
		t.Fatal("blink starts lit")
	}
	l.Update(ms(1249))
	if !g.pins[pinRed] {
		t.Error("toggled early")
	}
	l.Update(ms(1250))
	if g.pins[pinRed] {
		t.Error("not toggled after 250ms")
	}
	l.Update(ms(1500))
	if !g.pins[pinRed] {
		t.Error("not toggled back")
	}
}

func TestFlashVerySlow(t *testing.T) {
	l, g := newLED(t)
	l.Set(Green, FlashVerySlow, 0)
	if l.Lit() {
		t.Fatal("flash starts dark")
	}
	l.Update(ms(9999))
	if l.Lit() {
		t.Error("flashed early")
	}
	l.Update(ms(10000))
	if !l.Lit() || !g.pins[pinGreen] {
		t.Error("no flash after 10s")
	}
	l.Update(ms(10024))
	if !l.Lit() {
		t.Error("flash too short")
	}
	l.Update(ms(10025))
	if l.Lit() {
		t.Error("flash longer than 25ms")
	}
	l.Update(ms(20025))
	if !l.Lit() {
		t.Error("second flash missing")
	}
}

func TestOrangeAlternates(t *testing.T) {
	l, g := newLED(t)
	l.Set(Orange, On, 0)
	l.Update(ms(8))
	if !g.pins[pinRed] || g.pins[pinGreen] {
		t.Errorf("t=8ms: %v", g.pins)
	}
	l.Update(ms(13))
	if g.pins[pinRed] || !g.pins[pinGreen] {
		t.Errorf("t=13ms: %v", g.pins)
	}
}

func TestSetSameKeepsPhase(t *testing.T) {
	l, _ := newLED(t)
	l.Set(Red, BlinkSlow, 0)
	l.Set(Red, BlinkSlow, ms(400))
	l.Update(ms(500))
	if l.Lit() {
		t.Error("repeated Set restarted the blink timer")
	}
}
