//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"catprotect/core"
	"catprotect/dac"
)

// buildDACProgram shifts one 16-bit MCP4821 word per FIFO entry, MSB
// first. SCK is side-set, CS is the set pin.
//
//	.side_set 1
//	.wrap_target
//	    pull block     side 0
//	    set pins, 0    side 0   ; CS low
//	    set x, 15      side 0
//	bitloop:
//	    out pins, 1    side 0
//	    jmp x--, bitloop side 1
//	    set pins, 1    side 0   ; CS high
//	.wrap
func buildDACProgram(origin uint8) []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 1}
	return []uint16{
		asm.Pull(false, true).Side(0).Encode(),
		asm.Set(rp2pio.SetDestPins, 0).Side(0).Encode(),
		asm.Set(rp2pio.SetDestX, 15).Side(0).Encode(),
		asm.Out(rp2pio.OutDestPins, 1).Side(0).Encode(),
		asm.Jmp(origin+3, rp2pio.JmpXNZeroDec).Side(1).Encode(),
		asm.Set(rp2pio.SetDestPins, 1).Side(0).Encode(),
	}
}

const dacPIOOrigin = 0

// dacClkDiv gives a 20MHz state machine clock at 125MHz, 10MHz SCK
const dacClkDiv = 6

// pioDAC is an MCP4821 output stage whose words are shifted by a PIO
// state machine. Only the LDAC latch is driven by the CPU, so SetValue
// costs one FIFO write.
type pioDAC struct {
	pio   *rp2pio.PIO
	sm    rp2pio.StateMachine
	gpio  core.GPIODriver
	latch core.GPIOPin
}

func newPIODAC(gpio core.GPIODriver, sck, sdo, cs machine.Pin, latch core.GPIOPin) (*pioDAC, error) {
	d := &pioDAC{
		pio:   rp2pio.PIO0,
		gpio:  gpio,
		latch: latch,
	}
	d.sm = d.pio.StateMachine(0)
	d.sm.TryClaim()

	program := buildDACProgram(dacPIOOrigin)
	offset, err := d.pio.AddProgram(program, dacPIOOrigin)
	if err != nil {
		return nil, err
	}

	for _, pin := range []machine.Pin{sck, sdo, cs} {
		pin.Configure(machine.PinConfig{Mode: d.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSidesetParams(1, false, false)
	cfg.SetSidesetPins(sck)
	cfg.SetOutPins(sdo, 1)
	cfg.SetSetPins(cs, 1)
	// Shift left so bit 31 leaves first; words are queued as w<<16
	cfg.SetOutShift(false, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(dacClkDiv, 0)

	d.sm.Init(offset, cfg)
	d.sm.SetPindirsConsecutive(sck, 1, true)
	d.sm.SetPindirsConsecutive(sdo, 1, true)
	d.sm.SetPindirsConsecutive(cs, 1, true)
	d.sm.SetPinsConsecutive(cs, 1, true)
	d.sm.SetPinsConsecutive(sck, 1, false)

	if err := gpio.ConfigureOutput(latch); err != nil {
		return nil, err
	}
	if err := gpio.SetPin(latch, true); err != nil {
		return nil, err
	}
	d.sm.SetEnabled(true)
	d.Disable()
	return d, nil
}

func (d *pioDAC) put(word uint16) {
	for d.sm.IsTxFIFOFull() {
	}
	d.sm.TxPut(uint32(word) << 16)
}

// SetValue queues v. The state machine finishes the word in under 2us,
// well inside one sample period.
func (d *pioDAC) SetValue(v uint16) {
	d.put(dac.Word(v))
}

// Commit pulses LDAC once the queued word has left the FIFO
func (d *pioDAC) Commit() {
	for !d.sm.IsTxFIFOEmpty() {
	}
	_ = d.gpio.SetPin(d.latch, false)
	_ = d.gpio.SetPin(d.latch, true)
}

// Disable shuts the DAC output down
func (d *pioDAC) Disable() {
	d.put(0)
	for !d.sm.IsTxFIFOEmpty() {
	}
	// Let the last word finish shifting before latching it
	core.DelayUS(hwClock{}, 2)
	d.Commit()
}
