package pio

// Step pulse program, assembled by hand in pioasm listing form.
//
// Each command word pulled from the TX FIFO is split as follows (shift right):
//
//	Bits 0-15:  pulse count minus one (X)
//	Bits 16-23: extra delay cycles per pulse (Y, kept in ISR)
//	Bit 24:     direction (0=forward, 1=reverse)
//
// jmp y-- leaves Y at 0xFFFFFFFF when it falls through, so the delay is
// reloaded from ISR before every pulse. One pulse costs Y+12 cycles.
var stepperProgram = []uint16{
	//     .wrap_target
	0x80a0, //  0: pull   block
	0x6030, //  1: out    x, 16
	0x6048, //  2: out    y, 8
	0xa0c2, //  3: mov    isr, y
	0x6001, //  4: out    pins, 1
	//     pulse:
	0xa046, //  5: mov    y, isr
	0xe701, //  6: set    pins, 1 [7]
	0xe000, //  7: set    pins, 0
	//     spacing:
	0x0088, //  8: jmp    y--, 8
	0x0045, //  9: jmp    x--, 5
	//     .wrap
}

const (
	stepperPIOOrigin = 0 // jump targets above are absolute
	stepperWrapStart = 0
	stepperWrapEnd   = 9
)

// jmpTo encodes an unconditional jmp, executed to park a stopped machine on the pull
func jmpTo(addr uint8) uint16 {
	return uint16(addr & 0x1f)
}
