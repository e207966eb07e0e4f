package core

import (
	"github.com/go-logr/logr"

	"tmcuart/protocol"
)

// Option configures a Device during Init
type Option func(*Device)

// WithClockHz sets the oscillator frequency used for the clock constant.
// Measure it on boards that need accurate speed; the internal oscillator drifts a few percent.
func WithClockHz(hz float64) Option {
	return func(d *Device) {
		if hz > 0 {
			d.clockHz = hz
		}
	}
}

// WithMicrostepResolution sets the resolution the chip is known to run at,
// for handles opened on a node configured earlier
func WithMicrostepResolution(m MicrostepResolution) Option {
	return func(d *Device) {
		d.mres = m
	}
}

// WithInverted flips the direction sign of speed and position commands
func WithInverted(inverted bool) Option {
	return func(d *Device) {
		d.inverted = inverted
	}
}

// WithPositionRPM sets the rotational speed SetAngle moves at
func WithPositionRPM(rpm float64) Option {
	return func(d *Device) {
		if rpm > 0 {
			d.positionRPM = rpm
		}
	}
}

// WithCodec selects the datagram framing and checksum
func WithCodec(c protocol.Codec) Option {
	return func(d *Device) {
		d.codec = c
	}
}

// WithLogger sets the logger for register traffic
func WithLogger(log logr.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// WithWriteVerify reads IFCNT around every write and fails when the node did not count it
func WithWriteVerify(verify bool) Option {
	return func(d *Device) {
		d.verifyWrites = verify
	}
}
