package core

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"tmcuart/protocol"
)

const (
	// DefaultPositionRPM is the speed SetAngle moves at unless WithPositionRPM is given
	DefaultPositionRPM = 60
)

// Shadow holds the last values written to or read from the registers that
// are updated field by field. The chip cannot be read back cheaply on every
// write, so partial writes merge into these copies.
type Shadow struct {
	GCONF    uint32
	NODECONF uint32
	CHOPCONF uint32
}

// Device is the handle for one TMC2226 node on a shared UART.
// The zero value is uninitialized; call Init before use.
// A Device is not safe for concurrent use; the Bus it borrows is.
type Device struct {
	bus    *protocol.Bus
	pulses PulseGenerator
	codec  protocol.Codec
	log    logr.Logger

	node         protocol.NodeAddress
	stepsPerTurn uint16
	mres         MicrostepResolution
	clockHz      float64
	clockConst   float64
	inverted     bool
	positionRPM  float64
	verifyWrites bool

	shadow   Shadow
	position int32 // microsteps within one revolution
	ready    bool

	reply [protocol.MaxDatagramLen]byte
}

// New allocates and initializes a Device
func New(node protocol.NodeAddress, pulses PulseGenerator, bus *protocol.Bus, stepsPerTurn uint16, opts ...Option) (*Device, error) {
	d := &Device{}
	if err := d.Init(node, pulses, bus, stepsPerTurn, opts...); err != nil {
		return nil, err
	}
	return d, nil
}

// Init binds the device to a node on bus. pulses may be nil when only
// velocity mode is used. Shadow registers start zeroed, resolution starts at
// FullStep unless WithMicrostepResolution says otherwise, and the tracked
// position at 0.
func (d *Device) Init(node protocol.NodeAddress, pulses PulseGenerator, bus *protocol.Bus, stepsPerTurn uint16, opts ...Option) error {
	if err := protocol.CheckNodeAddress(node); err != nil {
		return err
	}
	if stepsPerTurn == 0 {
		return &protocol.OutOfRangeError{Quantity: "steps per turn", Value: 0, Min: 1, Max: 65535}
	}
	if bus == nil {
		return errors.New("nil bus")
	}

	*d = Device{
		bus:          bus,
		pulses:       pulses,
		codec:        protocol.DefaultCodec,
		log:          logr.Discard(),
		node:         node,
		stepsPerTurn: stepsPerTurn,
		mres:         DefaultMicrostepResolution,
		clockHz:      DefaultClockHz,
		positionRPM:  DefaultPositionRPM,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := checkResolution(d.mres); err != nil {
		*d = Device{}
		return err
	}
	d.log = d.log.WithValues("node", uint8(node))
	d.recompute()
	d.ready = true

	d.log.V(2).Info("Device initialized", "stepsPerTurn", stepsPerTurn, "clockHz", d.clockHz,
		"framing", d.codec.Framing.String(), "inverted", d.inverted)
	return nil
}

func (d *Device) recompute() {
	d.clockConst = ClockConstant(d.mres.Multiplier(), d.stepsPerTurn, d.clockHz)
}

// Ready reports whether Init succeeded
func (d *Device) Ready() bool {
	return d.ready
}

// Node returns the node address
func (d *Device) Node() protocol.NodeAddress {
	return d.node
}

// StepsPerTurn returns the motor's full steps per revolution
func (d *Device) StepsPerTurn() uint16 {
	return d.stepsPerTurn
}

// MicrostepResolution returns the resolution last written successfully
func (d *Device) MicrostepResolution() MicrostepResolution {
	return d.mres
}

// ClockConstant returns VACTUAL units per RPM at the current resolution
func (d *Device) ClockConstant() float64 {
	return d.clockConst
}

// Shadow returns a copy of the shadow registers
func (d *Device) Shadow() Shadow {
	return d.shadow
}

// Position returns the tracked microstep position within one revolution
func (d *Device) Position() int32 {
	return d.position
}

// Codec returns the codec the device frames datagrams with
func (d *Device) Codec() protocol.Codec {
	return d.codec
}

func (d *Device) stepsPerRevolution() int32 {
	return int32(d.stepsPerTurn) * int32(d.mres.Multiplier())
}

func (d *Device) directionSign() float64 {
	if d.inverted {
		return -1
	}
	return 1
}
