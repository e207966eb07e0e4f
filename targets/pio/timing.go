package pio

import (
	"math"
	"time"

	"tmcuart/protocol"
)

const (
	// MaxPIOPulses is the longest train one command word can carry (16-bit X)
	MaxPIOPulses = 1 << 16

	// pulseOverhead is the fixed cycle count of one pass through the step
	// loop: mov y, isr, set pins 1 [7], set pins 0, the final jmp y-- and jmp x--
	pulseOverhead = 12
	maxDelay      = 255
	maxClkDiv     = 65535
)

// PulseTiming picks the state machine clock divider and per-pulse delay
// that come closest to rate pulses per second off a sysHz system clock.
// One pulse takes div * (delay + 12) system cycles.
func PulseTiming(sysHz, rate float64) (div uint16, delay uint8, err error) {
	if math.IsNaN(rate) || rate <= 0 || sysHz <= 0 {
		return 0, 0, &protocol.OutOfRangeError{Quantity: "pulse rate", Value: int64(rate), Min: 1, Max: int64(sysHz / pulseOverhead)}
	}
	cycles := sysHz / rate
	if cycles < pulseOverhead {
		return 0, 0, &protocol.OutOfRangeError{Quantity: "pulse rate", Value: int64(rate), Min: int64(MinPulseRate(sysHz)) + 1, Max: int64(sysHz / pulseOverhead)}
	}

	d := math.Ceil(cycles / (maxDelay + pulseOverhead))
	if d > maxClkDiv {
		return 0, 0, &protocol.OutOfRangeError{Quantity: "pulse rate", Value: int64(rate), Min: int64(MinPulseRate(sysHz)) + 1, Max: int64(sysHz / pulseOverhead)}
	}
	if d < 1 {
		d = 1
	}
	y := math.Round(cycles/d) - pulseOverhead
	y = math.Max(0, math.Min(y, maxDelay))
	return uint16(d), uint8(y), nil
}

// ActualRate returns the pulse rate a divider and delay produce
func ActualRate(sysHz float64, div uint16, delay uint8) float64 {
	return sysHz / (float64(div) * (float64(delay) + pulseOverhead))
}

// MinPulseRate is the slowest rate the PIO program can produce
func MinPulseRate(sysHz float64) float64 {
	return ActualRate(sysHz, maxClkDiv, maxDelay)
}

// commandWord packs a pulse train for the state machine: X = count-1 in
// bits 0-15, Y = delay in bits 16-23, direction in bit 24.
func commandWord(count uint32, delay uint8, reverse bool) uint32 {
	cmd := (count-1)&0xFFFF | uint32(delay)<<16
	if reverse {
		cmd |= 1 << 24
	}
	return cmd
}

// PulsePeriod converts a rate into the spacing of software-timed pulses
func PulsePeriod(rate float64) (time.Duration, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, &protocol.OutOfRangeError{Quantity: "pulse rate", Value: int64(0), Min: 1, Max: int64(time.Second)}
	}
	period := time.Duration(float64(time.Second) / rate)
	if period <= 0 {
		period = 1
	}
	return period, nil
}
