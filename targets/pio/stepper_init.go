//go:build rp2040

package pio

import (
	"machine"

	"tmcuart/core"
)

// RP2040/RP2350 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each
var (
	pioAllocations = [2][4]bool{} // [pioNum][smNum]
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// NewPulseGenerator returns a pulse generator driving stepPin and dirPin,
// on a free PIO state machine when one is left and on GPIO otherwise.
func NewPulseGenerator(stepPin, dirPin machine.Pin) (core.PulseGenerator, core.PulseGeneratorInfo, error) {
	if pioNum, smNum, ok := allocatePIO(); ok {
		g := NewPIOPulseGenerator(pioNum, smNum)
		if err := g.Init(stepPin, dirPin); err != nil {
			pioAllocations[pioNum][smNum] = false
			return nil, core.PulseGeneratorInfo{}, err
		}
		return g, g.Info(), nil
	}

	g := NewGPIOPulseGenerator()
	if err := g.Init(stepPin, dirPin); err != nil {
		return nil, core.PulseGeneratorInfo{}, err
	}
	return g, g.Info(), nil
}

// allocatePIO allocates a PIO state machine
// Returns (pioNum, smNum, ok)
func allocatePIO() (uint8, uint8, bool) {
	// Round-robin across PIO blocks and state machines
	for i := 0; i < 8; i++ {
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}
	return 0, 0, false
}

// PIOAllocationStatus returns PIO allocation status for debugging
func PIOAllocationStatus() [2][4]bool {
	return pioAllocations
}
