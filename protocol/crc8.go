package protocol

import "github.com/sigurn/crc8"

// Checksum computes the trailing checksum byte of a datagram
type Checksum func(data []byte) uint8

// CRC8Polynomial is the bit-reversed form of the 0x31 polynomial CRC8 uses
const CRC8Polynomial = 0x8C

var crc8Table = crc8.MakeTable(crc8.CRC8_MAXIM)

// CRC8 calculates the 8-bit checksum of a datagram without its CRC byte.
// Bits are consumed LSB first and the register shifts right, so appending
// the result to data and recomputing yields zero.
func CRC8(data []byte) uint8 {
	return crc8.Checksum(data, crc8Table)
}

// datasheetParams describe the checksum as printed in the Trinamic datasheet:
// data bits LSB first into a left-shifting register, polynomial 0x07
var datasheetParams = crc8.Params{Poly: 0x07, RefIn: true, Name: "CRC-8/TMC"}

var datasheetTable = crc8.MakeTable(datasheetParams)

// DatasheetCRC8 calculates the checksum real silicon expects
func DatasheetCRC8(data []byte) uint8 {
	return crc8.Checksum(data, datasheetTable)
}
