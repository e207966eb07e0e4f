package protocol

// TMC2226 register map
// Based on the TMC2226 datasheet Rev. 1.11, UART register section.
// Read and write registers are separate types: several addresses are
// shared between both directions but carry different meaning.

import (
	"math/bits"
	"strings"
)

// NodeAddress selects one of four chips on a shared UART (MS1/MS2 pins)
type NodeAddress uint8

const (
	Node0 NodeAddress = 0x00 // MS1 LOW,  MS2 LOW
	Node1 NodeAddress = 0x01 // MS1 HIGH, MS2 LOW
	Node2 NodeAddress = 0x02 // MS1 LOW,  MS2 HIGH
	Node3 NodeAddress = 0x03 // MS1 HIGH, MS2 HIGH

	MaxNodeAddress = Node3
)

// Valid reports whether the address can be selected with the MS1/MS2 pins
func (n NodeAddress) Valid() bool {
	return n <= MaxNodeAddress
}

// CheckNodeAddress returns an OutOfRangeError for addresses above Node3
func CheckNodeAddress(n NodeAddress) error {
	if !n.Valid() {
		return &OutOfRangeError{Quantity: "node address", Value: int64(n), Max: int64(MaxNodeAddress)}
	}
	return nil
}

// ReadRegister is a register address readable over UART
type ReadRegister uint8

// Readable registers
const (
	// General configuration registers
	ReadGCONF        ReadRegister = 0x00 // Global configuration flags
	ReadGSTAT        ReadRegister = 0x01 // Global status flags
	ReadIFCNT        ReadRegister = 0x02 // Interface write transmission counter
	ReadOTP_READ     ReadRegister = 0x05 // OTP memory contents
	ReadIOIN         ReadRegister = 0x06 // Input pin states and silicon version
	ReadFACTORY_CONF ReadRegister = 0x07 // Clock trim
	// Velocity dependent control
	ReadTSTEP ReadRegister = 0x12 // Measured time between two microsteps
	// StallGuard control
	ReadSG_RESULT ReadRegister = 0x41 // StallGuard load measurement
	// Sequencer registers
	ReadMSCNT    ReadRegister = 0x6A // Microstep counter
	ReadMSCURACT ReadRegister = 0x6B // Actual microstep current
	// Chopper control registers
	ReadCHOPCONF   ReadRegister = 0x6C // Chopper configuration
	ReadDRV_STATUS ReadRegister = 0x6F // Driver status flags
	ReadPWMCONF    ReadRegister = 0x70 // StealthChop PWM configuration
	ReadPWM_SCALE  ReadRegister = 0x71 // StealthChop amplitude results
	ReadPWM_AUTO   ReadRegister = 0x72 // Automatically determined PWM values
)

// WriteRegister is a register address writable over UART
type WriteRegister uint8

// Writable registers
const (
	// General configuration registers
	WriteGCONF        WriteRegister = 0x00 // Global configuration flags
	ClearGSTAT        WriteRegister = 0x01 // Write 1 to a bit to clear the flag
	WriteNODECONF     WriteRegister = 0x03 // SENDDELAY for read replies
	WriteOTP_PROG     WriteRegister = 0x04 // OTP programming
	WriteFACTORY_CONF WriteRegister = 0x07 // Clock trim
	// Velocity dependent control
	WriteIHOLD_IRUN WriteRegister = 0x10 // Driver current control
	WriteTPOWERDOWN WriteRegister = 0x11 // Delay before power down at standstill
	WriteTPWMTHRS   WriteRegister = 0x13 // Upper velocity for StealthChop
	WriteVACTUAL    WriteRegister = 0x22 // Velocity commanded over UART
	// StallGuard control
	WriteTCOOLTHRS WriteRegister = 0x14 // Lower velocity for CoolStep and StallGuard
	WriteSGTHRS    WriteRegister = 0x40 // StallGuard detection threshold
	WriteCOOLCONF  WriteRegister = 0x42 // CoolStep configuration
	// Chopper control registers
	WriteCHOPCONF WriteRegister = 0x6C // Chopper configuration
	WritePWMCONF  WriteRegister = 0x70 // StealthChop PWM configuration
)

// Field locates a bit field inside a 32-bit register value.
// Mask is given in register position, not shifted down.
type Field struct {
	Mask  uint32
	Shift uint8
}

// WholeRegister is the identity field: the whole register is the value
var WholeRegister = Field{Mask: 0xFFFFFFFF, Shift: 0}

// NewField builds a field of width bits starting at bit shift
func NewField(shift, width uint8) Field {
	mask := uint32(1)<<width - 1
	if width >= 32 {
		mask = 0xFFFFFFFF
	}
	return Field{Mask: mask << shift, Shift: shift}
}

// Bit builds a single-bit field
func Bit(n uint8) Field {
	return NewField(n, 1)
}

// Width returns the number of bits in the field
func (f Field) Width() int {
	return bits.OnesCount32(f.Mask)
}

// Max returns the largest value the field can hold
func (f Field) Max() uint32 {
	return f.Mask >> f.Shift
}

// Whole reports whether the field spans the entire register
func (f Field) Whole() bool {
	return f.Mask == 0xFFFFFFFF
}

// Extract isolates the field from a raw register value
func (f Field) Extract(raw uint32) uint32 {
	return (raw & f.Mask) >> f.Shift
}

// Insert returns raw with the field replaced by v
func (f Field) Insert(raw, v uint32) (uint32, error) {
	if v > f.Max() {
		return raw, &OutOfRangeError{Quantity: "field value", Value: int64(v), Max: int64(f.Max())}
	}
	return (raw &^ f.Mask) | ((v << f.Shift) & f.Mask), nil
}

// GCONF fields
var (
	GCONFIScaleAnalog   = Bit(0)
	GCONFInternalRsense = Bit(1)
	GCONFEnSpreadCycle  = Bit(2)
	GCONFShaft          = Bit(3)
	GCONFIndexOTPW      = Bit(4)
	GCONFIndexStep      = Bit(5)
	GCONFPdnDisable     = Bit(6)
	GCONFMstepRegSelect = Bit(7)
	GCONFMultistepFilt  = Bit(8)
)

// GSTAT fields
var (
	GSTATReset  = Bit(0)
	GSTATDrvErr = Bit(1)
	GSTATUvCP   = Bit(2)
	GSTATAll    = NewField(0, 3)
)

// NODECONF fields
var NODECONFSendDelay = NewField(8, 4)

// IHOLD_IRUN fields
var (
	IHOLD      = NewField(0, 5)
	IRUN       = NewField(8, 5)
	IHOLDDELAY = NewField(16, 4)
)

// CHOPCONF fields
var (
	CHOPCONFToff    = NewField(0, 4)
	CHOPCONFHstrt   = NewField(4, 3)
	CHOPCONFHend    = NewField(7, 4)
	CHOPCONFTbl     = NewField(15, 2)
	CHOPCONFVsense  = Bit(17)
	CHOPCONFMRES    = NewField(24, 4)
	CHOPCONFIntpol  = Bit(28)
	CHOPCONFDedge   = Bit(29)
	CHOPCONFDiss2g  = Bit(30)
	CHOPCONFDiss2vs = Bit(31)
)

// DRV_STATUS fields
var (
	DRVStatusOTPW     = Bit(0)
	DRVStatusOT       = Bit(1)
	DRVStatusS2GA     = Bit(2)
	DRVStatusS2GB     = Bit(3)
	DRVStatusS2VSA    = Bit(4)
	DRVStatusS2VSB    = Bit(5)
	DRVStatusOLA      = Bit(6)
	DRVStatusOLB      = Bit(7)
	DRVStatusT120     = Bit(8)
	DRVStatusT143     = Bit(9)
	DRVStatusT150     = Bit(10)
	DRVStatusT157     = Bit(11)
	DRVStatusCSActual = NewField(16, 5)
	DRVStatusStealth  = Bit(30)
	DRVStatusStst     = Bit(31)
)

// Single-field registers
var (
	IOINVersion       = NewField(24, 8)
	VACTUALVelocity   = NewField(0, 24)
	TSTEPInterval     = NewField(0, 20)
	TCOOLTHRSVelocity = NewField(0, 20)
	SGTHRSThreshold   = NewField(0, 8)
	SGResult          = NewField(0, 10)
)

// Descriptor is the static description of one register
type Descriptor struct {
	Name  string
	Width uint8 // Significant bits of the raw value
	Field Field // Field of interest returned by a masked read
}

func (d Descriptor) present() bool {
	return d.Name != ""
}

// readRegisters is indexed by register address
var readRegisters = [RegisterMask + 1]Descriptor{
	ReadGCONF:        {Name: "GCONF", Width: 10, Field: WholeRegister},
	ReadGSTAT:        {Name: "GSTAT", Width: 3, Field: GSTATAll},
	ReadIFCNT:        {Name: "IFCNT", Width: 8, Field: NewField(0, 8)},
	ReadOTP_READ:     {Name: "OTP_READ", Width: 24, Field: NewField(0, 24)},
	ReadIOIN:         {Name: "IOIN", Width: 32, Field: IOINVersion},
	ReadFACTORY_CONF: {Name: "FACTORY_CONF", Width: 10, Field: NewField(0, 5)},
	ReadTSTEP:        {Name: "TSTEP", Width: 20, Field: TSTEPInterval},
	ReadSG_RESULT:    {Name: "SG_RESULT", Width: 10, Field: SGResult},
	ReadMSCNT:        {Name: "MSCNT", Width: 10, Field: NewField(0, 10)},
	ReadMSCURACT:     {Name: "MSCURACT", Width: 25, Field: WholeRegister},
	ReadCHOPCONF:     {Name: "CHOPCONF", Width: 32, Field: CHOPCONFMRES},
	ReadDRV_STATUS:   {Name: "DRV_STATUS", Width: 32, Field: WholeRegister},
	ReadPWMCONF:      {Name: "PWMCONF", Width: 32, Field: WholeRegister},
	ReadPWM_SCALE:    {Name: "PWM_SCALE", Width: 25, Field: NewField(0, 8)},
	ReadPWM_AUTO:     {Name: "PWM_AUTO", Width: 24, Field: WholeRegister},
}

// writeRegisters is indexed by register address
var writeRegisters = [RegisterMask + 1]Descriptor{
	WriteGCONF:        {Name: "GCONF", Width: 10, Field: WholeRegister},
	ClearGSTAT:        {Name: "GSTAT", Width: 3, Field: GSTATAll},
	WriteNODECONF:     {Name: "NODECONF", Width: 12, Field: NODECONFSendDelay},
	WriteOTP_PROG:     {Name: "OTP_PROG", Width: 16, Field: WholeRegister},
	WriteFACTORY_CONF: {Name: "FACTORY_CONF", Width: 10, Field: WholeRegister},
	WriteIHOLD_IRUN:   {Name: "IHOLD_IRUN", Width: 20, Field: WholeRegister},
	WriteTPOWERDOWN:   {Name: "TPOWERDOWN", Width: 8, Field: NewField(0, 8)},
	WriteTPWMTHRS:     {Name: "TPWMTHRS", Width: 20, Field: NewField(0, 20)},
	WriteVACTUAL:      {Name: "VACTUAL", Width: 24, Field: VACTUALVelocity},
	WriteTCOOLTHRS:    {Name: "TCOOLTHRS", Width: 20, Field: TCOOLTHRSVelocity},
	WriteSGTHRS:       {Name: "SGTHRS", Width: 8, Field: SGTHRSThreshold},
	WriteCOOLCONF:     {Name: "COOLCONF", Width: 16, Field: WholeRegister},
	WriteCHOPCONF:     {Name: "CHOPCONF", Width: 32, Field: WholeRegister},
	WritePWMCONF:      {Name: "PWMCONF", Width: 32, Field: WholeRegister},
}

// LookupRead returns the descriptor of a readable register
func LookupRead(r ReadRegister) (Descriptor, bool) {
	if r > RegisterMask {
		return Descriptor{}, false
	}
	d := readRegisters[r]
	return d, d.present()
}

// LookupWrite returns the descriptor of a writable register
func LookupWrite(r WriteRegister) (Descriptor, bool) {
	if r > RegisterMask {
		return Descriptor{}, false
	}
	d := writeRegisters[r]
	return d, d.present()
}

// MaskFor returns the field isolated by a masked read of r.
// Registers without sub-field semantics, and unknown registers, yield WholeRegister.
func MaskFor(r ReadRegister) Field {
	d, ok := LookupRead(r)
	if !ok {
		return WholeRegister
	}
	return d.Field
}

func (r ReadRegister) String() string {
	if d, ok := LookupRead(r); ok {
		return d.Name
	}
	return "READ_0x" + hexByte(uint8(r))
}

func (r WriteRegister) String() string {
	if d, ok := LookupWrite(r); ok {
		return d.Name
	}
	return "WRITE_0x" + hexByte(uint8(r))
}

// ParseReadRegister resolves a register name such as "chopconf"
func ParseReadRegister(name string) (ReadRegister, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for addr, d := range readRegisters {
		if d.present() && d.Name == name {
			return ReadRegister(addr), true
		}
	}
	return 0, false
}

// ParseWriteRegister resolves a register name such as "vactual"
func ParseWriteRegister(name string) (WriteRegister, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for addr, d := range writeRegisters {
		if d.present() && d.Name == name {
			return WriteRegister(addr), true
		}
	}
	return 0, false
}

// ReadRegisters returns every readable register in address order
func ReadRegisters() []ReadRegister {
	var out []ReadRegister
	for addr, d := range readRegisters {
		if d.present() {
			out = append(out, ReadRegister(addr))
		}
	}
	return out
}

const hexDigits = "0123456789ABCDEF"

func hexByte(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
