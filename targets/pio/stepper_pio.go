//go:build rp2040

package pio

// Hardware-timed step pulse trains on an RP2040 PIO state machine

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"tmcuart/core"
	"tmcuart/protocol"
)

// PIOPulseGenerator emits step pulse trains from a PIO state machine
type PIOPulseGenerator struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	stepPin machine.Pin
	dirPin  machine.Pin
	reverse bool
	offset  uint8
	pioNum  uint8
	smNum   uint8
	div     uint16
}

var _ core.PulseGenerator = (*PIOPulseGenerator)(nil)

// NewPIOPulseGenerator binds state machine smNum (0-3) of PIO block pioNum (0-1)
func NewPIOPulseGenerator(pioNum, smNum uint8) *PIOPulseGenerator {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &PIOPulseGenerator{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// Init loads the program and hands stepPin and dirPin to the state machine
func (g *PIOPulseGenerator) Init(stepPin, dirPin machine.Pin) error {
	g.stepPin = stepPin
	g.dirPin = dirPin

	// The state machine must be claimed before it is configured
	g.sm.TryClaim()

	offset, err := g.pio.AddProgram(stepperProgram, stepperPIOOrigin)
	if err != nil {
		return err
	}
	g.offset = offset

	g.stepPin.Configure(machine.PinConfig{Mode: g.pio.PinMode()})
	g.dirPin.Configure(machine.PinConfig{Mode: g.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(g.stepPin, 1)
	cfg.SetOutPins(g.dirPin, 1)
	// Shift right, explicit PULL
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+stepperWrapEnd, offset+stepperWrapStart)
	g.div = 1
	cfg.SetClkDivIntFrac(g.div, 0)

	g.sm.Init(offset, cfg)

	// Pin directions only stick after Init
	g.sm.SetPindirsConsecutive(g.stepPin, 1, true)
	g.sm.SetPindirsConsecutive(g.dirPin, 1, true)
	g.sm.SetPinsConsecutive(g.stepPin, 1, false)
	g.sm.SetPinsConsecutive(g.dirPin, 1, false)

	g.sm.SetEnabled(true)
	return nil
}

// SetDirection latches the direction of the next train. The program
// drives the pin before the first pulse, which covers dir-to-step setup.
func (g *PIOPulseGenerator) SetDirection(reverse bool) {
	g.reverse = reverse
}

// StartPulses queues count pulses at rate pulses per second
func (g *PIOPulseGenerator) StartPulses(count uint32, rate float64) error {
	if count == 0 {
		return nil
	}
	if count > MaxPIOPulses {
		return &protocol.OutOfRangeError{Quantity: "pulse count", Value: int64(count), Min: 0, Max: MaxPIOPulses}
	}
	div, delay, err := PulseTiming(float64(machine.CPUFrequency()), rate)
	if err != nil {
		return err
	}

	// TODO: the divider is shared by every queued train; move the rate
	// into the command word so back-to-back moves keep their own speed.
	if div != g.div {
		g.sm.SetClkDiv(div, 0)
		g.div = div
	}

	for g.sm.IsTxFIFOFull() {
	}
	g.sm.TxPut(commandWord(count, delay, g.reverse))
	return nil
}

// Stop drops queued trains and parks the program on the pull.
// Restart clears only internal state, not PC, X or Y.
func (g *PIOPulseGenerator) Stop() {
	g.sm.SetEnabled(false)
	g.sm.ClearFIFOs()
	g.sm.Restart()
	g.sm.Exec(jmpTo(g.offset))
	g.sm.SetPinsConsecutive(g.stepPin, 1, false)
	g.sm.SetEnabled(true)
}

// MaxPulses returns the largest train one command word can carry
func (g *PIOPulseGenerator) MaxPulses() uint32 {
	return MaxPIOPulses
}

// Info returns backend performance information
func (g *PIOPulseGenerator) Info() core.PulseGeneratorInfo {
	sysHz := float64(machine.CPUFrequency())
	return core.PulseGeneratorInfo{
		Name:        "PIO",
		MaxStepRate: uint32(sysHz / pulseOverhead),
		MinPulseNs:  uint32(8 * 1e9 / sysHz), // set pins, 1 [7]
	}
}
