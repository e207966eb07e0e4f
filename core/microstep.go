package core

import (
	"fmt"

	"tmcuart/protocol"
)

// MicrostepResolution is the CHOPCONF MRES encoding: 0 selects 256 microsteps
// per full step, 8 selects full stepping.
type MicrostepResolution uint8

const (
	MicroSteps256 MicrostepResolution = iota
	MicroSteps128
	MicroSteps64
	MicroSteps32
	MicroSteps16
	MicroSteps8
	MicroSteps4
	MicroSteps2
	FullStep

	// DefaultMicrostepResolution is assumed after Init until SetMicrostepResolution succeeds
	DefaultMicrostepResolution = FullStep
)

// Valid reports whether m is a defined resolution
func (m MicrostepResolution) Valid() bool {
	return m <= FullStep
}

// Multiplier returns the number of microsteps per full step
func (m MicrostepResolution) Multiplier() uint32 {
	if !m.Valid() {
		return 0
	}
	return 1 << (FullStep - m)
}

func (m MicrostepResolution) String() string {
	if !m.Valid() {
		return fmt.Sprintf("MicrostepResolution(%d)", uint8(m))
	}
	return fmt.Sprintf("1/%d", m.Multiplier())
}

// MicrostepsFromMultiplier maps a microsteps-per-step count (1, 2, 4 ... 256) to its encoding
func MicrostepsFromMultiplier(n uint32) (MicrostepResolution, error) {
	for m := MicroSteps256; m <= FullStep; m++ {
		if m.Multiplier() == n {
			return m, nil
		}
	}
	return 0, &protocol.OutOfRangeError{Quantity: "microsteps", Value: int64(n), Min: 1, Max: 256}
}

func checkResolution(m MicrostepResolution) error {
	if !m.Valid() {
		return &protocol.OutOfRangeError{Quantity: "microstep resolution", Value: int64(m), Min: int64(MicroSteps256), Max: int64(FullStep)}
	}
	return nil
}
