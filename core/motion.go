package core

import (
	"math"

	"github.com/pkg/errors"

	"tmcuart/protocol"
)

// SetMicrostepResolution switches the chip to register-selected microstepping
// at resolution m. The clock constant follows only after both writes went out.
func (d *Device) SetMicrostepResolution(m MicrostepResolution) error {
	if !d.ready {
		return ErrInvalidState
	}
	if err := checkResolution(m); err != nil {
		return err
	}

	if _, err := d.WriteAccess(protocol.WriteGCONF, protocol.GCONFMstepRegSelect, 1); err != nil {
		return err
	}
	if _, err := d.WriteAccess(protocol.WriteCHOPCONF, protocol.CHOPCONFMRES, uint32(m)); err != nil {
		return err
	}

	d.applyResolution(m)
	d.log.V(2).Info("Microstep resolution set", "resolution", m.String(), "clockConstant", d.clockConst)
	return nil
}

// applyResolution keeps the tracked angle when the steps per revolution change
func (d *Device) applyResolution(m MicrostepResolution) {
	old := d.mres.Multiplier()
	d.position = int32(math.Round(float64(d.position) * float64(m.Multiplier()) / float64(old)))
	d.mres = m
	d.recompute()
	if rev := d.stepsPerRevolution(); d.position >= rev {
		d.position -= rev
	}
}

// VelocityFor converts rpm into a VACTUAL value without writing it
func (d *Device) VelocityFor(rpm float64) (int32, error) {
	if !d.ready {
		return 0, ErrInvalidState
	}
	if math.IsNaN(rpm) || math.IsInf(rpm, 0) {
		return 0, &protocol.OutOfRangeError{Quantity: "rpm", Min: -MaxVelocity, Max: MaxVelocity}
	}
	if rpm == 0 {
		return 0, nil
	}

	v := math.Round(rpm * d.clockConst * d.directionSign())
	if math.Abs(v) > MaxVelocity {
		reported := math.Max(math.Min(v, math.MaxInt32), math.MinInt32)
		return 0, &protocol.OutOfRangeError{Quantity: "VACTUAL", Value: int64(reported), Min: -MaxVelocity, Max: MaxVelocity}
	}
	return int32(v), nil
}

// SetSpeedByUART commands continuous rotation at rpm through VACTUAL and
// returns the value written. Negative rpm turns backwards; 0 stops.
func (d *Device) SetSpeedByUART(rpm float64) (int32, error) {
	v, err := d.VelocityFor(rpm)
	if err != nil {
		return 0, err
	}
	raw := uint32(v) & protocol.VACTUALVelocity.Mask
	if _, err := d.WriteAccess(protocol.WriteVACTUAL, protocol.VACTUALVelocity, raw); err != nil {
		return 0, err
	}
	d.log.V(3).Info("Speed set", "rpm", rpm, "vactual", v)
	return v, nil
}

// Stop sets VACTUAL to zero and halts the pulse generator
func (d *Device) Stop() error {
	if !d.ready {
		return ErrInvalidState
	}
	if d.pulses != nil {
		d.pulses.Stop()
	}
	_, err := d.WriteAccess(protocol.WriteVACTUAL, protocol.VACTUALVelocity, 0)
	return err
}

// AngleToSteps converts an angle in degrees to an absolute microstep count
// within one revolution. Angles wrap into [0, 360) and round half away from zero.
func AngleToSteps(angle float64, stepsPerTurn uint16, m MicrostepResolution) (int32, error) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0, &protocol.OutOfRangeError{Quantity: "angle", Min: 0, Max: 360}
	}
	if err := checkResolution(m); err != nil {
		return 0, err
	}

	rev := int64(stepsPerTurn) * int64(m.Multiplier())
	if rev == 0 {
		return 0, nil
	}
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	steps := int64(math.Round(a / 360 * float64(rev)))
	return int32(steps % rev), nil
}

// SetAngle moves to an absolute angle with the pulse generator, taking the
// shorter way around. Returns the target position in microsteps.
func (d *Device) SetAngle(angle float64) (int32, error) {
	if !d.ready {
		return 0, ErrInvalidState
	}
	if d.pulses == nil {
		return 0, errors.Wrap(ErrUnsupported, "no pulse generator")
	}

	target, err := AngleToSteps(angle, d.stepsPerTurn, d.mres)
	if err != nil {
		return 0, err
	}

	rev := d.stepsPerRevolution()
	delta := target - d.position
	switch {
	case delta > rev/2:
		delta -= rev
	case delta < -rev/2 || (delta == -rev/2 && rev%2 == 0):
		delta += rev
	}
	if delta == 0 {
		return target, nil
	}

	count := uint32(delta)
	if delta < 0 {
		count = uint32(-delta)
	}
	if err := checkPulses(d.pulses, count); err != nil {
		return 0, err
	}

	reverse := (delta < 0) != d.inverted
	rate := d.positionRPM / 60 * float64(rev)
	d.pulses.SetDirection(reverse)
	if err := d.pulses.StartPulses(count, rate); err != nil {
		return 0, errors.Wrap(err, "start pulses")
	}
	d.position = target

	d.log.V(3).Info("Moving", "angle", angle, "target", target, "steps", delta, "rate", rate)
	return target, nil
}

// EnableDriver is not available over UART on this chip; the enable pin is wired by the board
func (d *Device) EnableDriver() error {
	return errors.Wrap(ErrUnsupported, "enable driver")
}

// DisableDriver is not available over UART on this chip; the enable pin is wired by the board
func (d *Device) DisableDriver() error {
	return errors.Wrap(ErrUnsupported, "disable driver")
}
