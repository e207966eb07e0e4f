// Package protocol implements the TMC2226 single-wire UART protocol:
// datagram framing, CRC8 checksums, the register map and a bus that
// serializes exchanges between nodes sharing one UART.
package protocol

// Version represents the tmcuart library version
const Version = "0.1.0"

// Datagram framing bytes
const (
	SyncByte     = 0x05 // Sync nibble plus reserved nibble
	ReservedByte = 0x00 // Padding byte following sync in padded framing
	WriteFlag    = 0x80 // Set on the register byte of write datagrams
	ReadFlag     = 0x00
	MasterAddr   = 0xFF // Node field of datasheet-framed replies
	RegisterMask = 0x7F // Register address bits of the register byte
)

// Datagram sizes
const (
	PayloadLen     = 4 // 32-bit big-endian register value
	MaxDatagramLen = 9 // Longest datagram of any framing
	CRCLen         = 1
)
