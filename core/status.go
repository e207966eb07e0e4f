package core

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"tmcuart/protocol"
)

// DriverStatus is a decoded DRV_STATUS register
type DriverStatus struct {
	OverTempWarning bool
	OverTemp        bool
	ShortToGroundA  bool
	ShortToGroundB  bool
	ShortToSupplyA  bool
	ShortToSupplyB  bool
	OpenLoadA       bool
	OpenLoadB       bool
	Above120C       bool
	Above143C       bool
	Above150C       bool
	Above157C       bool
	CurrentScale    uint8 // Actual motor current scale, 0..31
	StealthChop     bool
	Standstill      bool
}

// DecodeDriverStatus splits a raw DRV_STATUS value into its flags
func DecodeDriverStatus(raw uint32) DriverStatus {
	flag := func(f protocol.Field) bool { return f.Extract(raw) != 0 }
	return DriverStatus{
		OverTempWarning: flag(protocol.DRVStatusOTPW),
		OverTemp:        flag(protocol.DRVStatusOT),
		ShortToGroundA:  flag(protocol.DRVStatusS2GA),
		ShortToGroundB:  flag(protocol.DRVStatusS2GB),
		ShortToSupplyA:  flag(protocol.DRVStatusS2VSA),
		ShortToSupplyB:  flag(protocol.DRVStatusS2VSB),
		OpenLoadA:       flag(protocol.DRVStatusOLA),
		OpenLoadB:       flag(protocol.DRVStatusOLB),
		Above120C:       flag(protocol.DRVStatusT120),
		Above143C:       flag(protocol.DRVStatusT143),
		Above150C:       flag(protocol.DRVStatusT150),
		Above157C:       flag(protocol.DRVStatusT157),
		CurrentScale:    uint8(protocol.DRVStatusCSActual.Extract(raw)),
		StealthChop:     flag(protocol.DRVStatusStealth),
		Standstill:      flag(protocol.DRVStatusStst),
	}
}

// FaultError lists the fault flags raised in a DriverStatus
type FaultError struct {
	Faults []string
}

func (e *FaultError) Error() string {
	return "driver faults: " + strings.Join(e.Faults, ", ")
}

// Faults returns a FaultError naming every fault flag, or nil.
// Temperature thresholds below overtemperature are informational and not faults.
func (s DriverStatus) Faults() error {
	var faults []string
	add := func(set bool, name string) {
		if set {
			faults = append(faults, name)
		}
	}
	add(s.OverTemp, "overtemperature")
	add(s.OverTempWarning, "overtemperature warning")
	add(s.ShortToGroundA, "short to ground A")
	add(s.ShortToGroundB, "short to ground B")
	add(s.ShortToSupplyA, "short to supply A")
	add(s.ShortToSupplyB, "short to supply B")
	add(s.OpenLoadA, "open load A")
	add(s.OpenLoadB, "open load B")
	if len(faults) == 0 {
		return nil
	}
	return &FaultError{Faults: faults}
}

// Status reads and decodes DRV_STATUS
func (d *Device) Status() (DriverStatus, error) {
	raw, err := d.ReadRaw(protocol.ReadDRV_STATUS)
	if err != nil {
		return DriverStatus{}, err
	}
	return DecodeDriverStatus(raw), nil
}

// GlobalStatus is a decoded GSTAT register
type GlobalStatus struct {
	Reset        bool // The chip has been reset since the flag was last cleared
	DriverError  bool // Driver shut down on overtemperature or short circuit
	UnderVoltage bool // Charge pump undervoltage
}

// GlobalStatus reads GSTAT
func (d *Device) GlobalStatus() (GlobalStatus, error) {
	raw, err := d.ReadRaw(protocol.ReadGSTAT)
	if err != nil {
		return GlobalStatus{}, err
	}
	return GlobalStatus{
		Reset:        protocol.GSTATReset.Extract(raw) != 0,
		DriverError:  protocol.GSTATDrvErr.Extract(raw) != 0,
		UnderVoltage: protocol.GSTATUvCP.Extract(raw) != 0,
	}, nil
}

// ClearGlobalStatus clears all GSTAT flags (write 1 to clear)
func (d *Device) ClearGlobalStatus() error {
	_, err := d.WriteAccess(protocol.ClearGSTAT, protocol.GSTATAll, protocol.GSTATAll.Max())
	return err
}

// Version returns the silicon version from IOIN, 0x21 for this chip family
func (d *Device) Version() (uint8, error) {
	v, err := d.Read(protocol.ReadIOIN)
	return uint8(v), err
}

// InterfaceCount returns IFCNT, incremented by the chip on every accepted write
func (d *Device) InterfaceCount() (uint8, error) {
	v, err := d.Read(protocol.ReadIFCNT)
	return uint8(v), err
}

// StallGuardResult returns the StallGuard load measurement
func (d *Device) StallGuardResult() (uint16, error) {
	v, err := d.Read(protocol.ReadSG_RESULT)
	return uint16(v), err
}

// StepInterval returns the measured time between two 1/256 microsteps.
// Zero means standstill.
func (d *Device) StepInterval() (time.Duration, error) {
	v, err := d.Read(protocol.ReadTSTEP)
	if err != nil {
		return 0, err
	}
	if v >= TSTEPStandstill {
		return 0, nil
	}
	return TicksToDuration(v, d.clockHz), nil
}

// SetCurrent sets hold and run current scales (0..31) and the hold delay (0..15)
func (d *Device) SetCurrent(hold, run, holdDelay uint8) error {
	_, err := d.WriteFields(protocol.WriteIHOLD_IRUN,
		FieldValue{Field: protocol.IHOLD, Value: uint32(hold)},
		FieldValue{Field: protocol.IRUN, Value: uint32(run)},
		FieldValue{Field: protocol.IHOLDDELAY, Value: uint32(holdDelay)},
	)
	return err
}

// SetStallThreshold sets SGTHRS; a stall is signalled when SG_RESULT drops below twice this value
func (d *Device) SetStallThreshold(threshold uint8) error {
	_, err := d.WriteAccess(protocol.WriteSGTHRS, protocol.SGTHRSThreshold, uint32(threshold))
	return err
}

// SetCoolStepThreshold sets TCOOLTHRS, the TSTEP above which CoolStep and StallGuard are active
func (d *Device) SetCoolStepThreshold(threshold uint32) error {
	_, err := d.WriteAccess(protocol.WriteTCOOLTHRS, protocol.TCOOLTHRSVelocity, threshold)
	return err
}

// Settings is the startup configuration applied by Configure
type Settings struct {
	SendDelay   uint8 // NODECONF SENDDELAY, at least 2 when several nodes share the bus
	Toff        uint8 // Chopper off time; 0 disables the driver stage
	HoldCurrent uint8
	RunCurrent  uint8
	HoldDelay   uint8
	Shaft       bool // Reverse the motor in hardware
	Microsteps  MicrostepResolution
}

// DefaultSettings matches the chip's power-on chopper setup with register-selected full stepping
func DefaultSettings() Settings {
	return Settings{
		SendDelay:   2,
		Toff:        3,
		HoldCurrent: 8,
		RunCurrent:  16,
		HoldDelay:   1,
		Microsteps:  DefaultMicrostepResolution,
	}
}

// Configure puts the node under UART control: PDN_UART is used for the
// interface only, MRES comes from CHOPCONF, and the power-on flags are cleared.
func (d *Device) Configure(s Settings) error {
	if !d.ready {
		return ErrInvalidState
	}
	if err := checkResolution(s.Microsteps); err != nil {
		return err
	}

	shaft := uint32(0)
	if s.Shaft {
		shaft = 1
	}
	steps := []struct {
		name string
		run  func() error
	}{
		{"NODECONF", func() error {
			_, err := d.WriteAccess(protocol.WriteNODECONF, protocol.NODECONFSendDelay, uint32(s.SendDelay))
			return err
		}},
		{"GCONF", func() error {
			_, err := d.WriteFields(protocol.WriteGCONF,
				FieldValue{Field: protocol.GCONFPdnDisable, Value: 1},
				FieldValue{Field: protocol.GCONFMstepRegSelect, Value: 1},
				FieldValue{Field: protocol.GCONFShaft, Value: shaft},
			)
			return err
		}},
		{"CHOPCONF", func() error {
			_, err := d.WriteFields(protocol.WriteCHOPCONF,
				FieldValue{Field: protocol.CHOPCONFToff, Value: uint32(s.Toff)},
				FieldValue{Field: protocol.CHOPCONFHstrt, Value: 5},
				FieldValue{Field: protocol.CHOPCONFIntpol, Value: 1},
				FieldValue{Field: protocol.CHOPCONFMRES, Value: uint32(s.Microsteps)},
			)
			return err
		}},
		{"IHOLD_IRUN", func() error {
			return d.SetCurrent(s.HoldCurrent, s.RunCurrent, s.HoldDelay)
		}},
		{"GSTAT", d.ClearGlobalStatus},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return errors.Wrapf(err, "configure %s", step.name)
		}
	}

	d.applyResolution(s.Microsteps)
	d.log.V(2).Info("Node configured", "sendDelay", s.SendDelay, "resolution", s.Microsteps.String())
	return nil
}
