package core

import (
	"math"
	"time"
)

const (
	// DefaultClockHz is the nominal internal oscillator frequency
	DefaultClockHz = 12000000

	// VelocityScale converts steps per clock to VACTUAL units (2^24)
	VelocityScale = 1 << 24

	// MaxVelocity is the largest VACTUAL magnitude, a 24-bit two's complement field
	MaxVelocity = 1<<23 - 1

	// TSTEPStandstill is reported in TSTEP when no step occurred within its range
	TSTEPStandstill = 1<<20 - 1
)

// ClockConstant returns VACTUAL units per RPM for a motor with stepsPerTurn full
// steps per revolution running at multiplier microsteps per step off clockHz.
func ClockConstant(multiplier uint32, stepsPerTurn uint16, clockHz float64) float64 {
	if clockHz <= 0 {
		return 0
	}
	return float64(multiplier) * float64(stepsPerTurn) / 60 * VelocityScale / clockHz
}

// TicksToDuration converts oscillator clocks to a duration
func TicksToDuration(ticks uint32, clockHz float64) time.Duration {
	if clockHz <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(ticks) * float64(time.Second) / clockHz))
}
