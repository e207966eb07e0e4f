package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Datagram is a fixed-size datagram buffer; building one never allocates
type Datagram struct {
	buf [MaxDatagramLen]byte
	n   uint8
}

// NewDatagram copies b into a Datagram, truncating at MaxDatagramLen
func NewDatagram(b []byte) Datagram {
	var d Datagram
	d.output(b...)
	return d
}

// Bytes returns the datagram contents, CRC byte included
func (d *Datagram) Bytes() []byte {
	return d.buf[:d.n]
}

// Len returns the datagram length in bytes
func (d *Datagram) Len() int {
	return int(d.n)
}

// Uint64 packs the datagram big-endian into an integer, first byte most significant.
// Handy for logging and for comparing against captured bus traces.
func (d *Datagram) Uint64() uint64 {
	var v uint64
	for _, b := range d.buf[:d.n] {
		v = v<<8 | uint64(b)
	}
	return v
}

func (d Datagram) String() string {
	return hex.EncodeToString(d.buf[:d.n])
}

func (d *Datagram) output(data ...byte) {
	n := copy(d.buf[d.n:], data)
	d.n += uint8(n)
}

func (d *Datagram) seal(sum Checksum) {
	d.output(sum(d.buf[:d.n]))
}

// Framing selects the byte layout of datagrams on the wire
type Framing uint8

const (
	// FramingPadded sends sync and reserved as separate bytes and expects
	// replies of the form {node, register, data[4], crc}. Replies are 7
	// bytes and carry neither sync nor reserved.
	FramingPadded Framing = iota
	// FramingDatasheet packs sync and reserved into one byte and expects
	// replies of the form {sync, 0xFF, register, data[4], crc}.
	FramingDatasheet
)

func (f Framing) String() string {
	switch f {
	case FramingPadded:
		return "padded"
	case FramingDatasheet:
		return "datasheet"
	default:
		return fmt.Sprintf("framing(%d)", uint8(f))
	}
}

// ParseFraming resolves a framing name used in configuration
func ParseFraming(name string) (Framing, error) {
	switch name {
	case "", "padded":
		return FramingPadded, nil
	case "datasheet":
		return FramingDatasheet, nil
	default:
		return FramingPadded, fmt.Errorf("unknown framing %q", name)
	}
}

// Codec builds request datagrams and parses reply datagrams
type Codec struct {
	Framing  Framing
	Checksum Checksum
}

// DefaultCodec uses padded framing with CRC8
var DefaultCodec = Codec{Framing: FramingPadded, Checksum: CRC8}

// DatasheetCodec uses the framing and checksum printed in the chip datasheet
var DatasheetCodec = Codec{Framing: FramingDatasheet, Checksum: DatasheetCRC8}

// CodecFor returns the stock codec of a framing
func CodecFor(f Framing) Codec {
	if f == FramingDatasheet {
		return DatasheetCodec
	}
	return DefaultCodec
}

func (c Codec) checksum() Checksum {
	if c.Checksum == nil {
		return CRC8
	}
	return c.Checksum
}

func (c Codec) header() int {
	if c.Framing == FramingDatasheet {
		return 1
	}
	return 2
}

// WriteLen returns the length of a write datagram
func (c Codec) WriteLen() int {
	return c.header() + 2 + PayloadLen + CRCLen
}

// ReadLen returns the length of a read request datagram
func (c Codec) ReadLen() int {
	return c.header() + 2 + CRCLen
}

// ReplyLen returns the length of a read reply datagram
func (c Codec) ReplyLen() int {
	if c.Framing == FramingDatasheet {
		return 3 + PayloadLen + CRCLen
	}
	return 2 + PayloadLen + CRCLen
}

func (c Codec) start(d *Datagram) {
	d.n = 0
	d.output(SyncByte)
	if c.Framing == FramingPadded {
		d.output(ReservedByte)
	}
}

// BuildWriteDatagram frames a write of data to reg on node
func (c Codec) BuildWriteDatagram(node NodeAddress, reg WriteRegister, data uint32) (Datagram, error) {
	var d Datagram
	if err := CheckNodeAddress(node); err != nil {
		return d, err
	}
	c.start(&d)
	d.output(uint8(node), uint8(reg)&RegisterMask|WriteFlag)
	var payload [PayloadLen]byte
	binary.BigEndian.PutUint32(payload[:], data)
	d.output(payload[:]...)
	d.seal(c.checksum())
	return d, nil
}

// BuildReadRequest frames a read request for reg on node
func (c Codec) BuildReadRequest(node NodeAddress, reg ReadRegister) (Datagram, error) {
	var d Datagram
	if err := CheckNodeAddress(node); err != nil {
		return d, err
	}
	c.start(&d)
	d.output(uint8(node), uint8(reg)&RegisterMask|ReadFlag)
	d.seal(c.checksum())
	return d, nil
}

// BuildReadReply frames a reply as a chip would send it. Used by simulators and tests.
func (c Codec) BuildReadReply(node NodeAddress, reg ReadRegister, data uint32) Datagram {
	var d Datagram
	if c.Framing == FramingDatasheet {
		d.output(SyncByte, MasterAddr)
	} else {
		d.output(uint8(node))
	}
	d.output(uint8(reg) & RegisterMask)
	var payload [PayloadLen]byte
	binary.BigEndian.PutUint32(payload[:], data)
	d.output(payload[:]...)
	d.seal(c.checksum())
	return d
}

// Reply is a parsed read reply
type Reply struct {
	Node     uint8 // Node address echo, or MasterAddr with datasheet framing
	Register ReadRegister
	Data     uint32
}

// ParseReadReply validates a received reply datagram and extracts its fields.
// The CRC is checked before any field is interpreted.
func (c Codec) ParseReadReply(b []byte) (Reply, error) {
	if len(b) != c.ReplyLen() {
		return Reply{}, &FrameError{Reason: fmt.Sprintf("reply length %d, expected %d", len(b), c.ReplyLen())}
	}

	body, received := b[:len(b)-CRCLen], b[len(b)-CRCLen]
	if computed := c.checksum()(body); computed != received {
		return Reply{}, &ChecksumError{Expected: computed, Actual: received}
	}

	if c.Framing == FramingDatasheet {
		if body[0]&0x0F != SyncByte&0x0F {
			return Reply{}, &FrameError{Reason: fmt.Sprintf("sync nibble 0x%X", body[0]&0x0F)}
		}
		if body[1] != MasterAddr {
			return Reply{}, &FrameError{Reason: fmt.Sprintf("reply address 0x%02X", body[1])}
		}
		body = body[1:]
	}
	if body[1]&WriteFlag != 0 {
		return Reply{}, &FrameError{Reason: "write flag set in reply"}
	}

	return Reply{
		Node:     body[0],
		Register: ReadRegister(body[1]),
		Data:     binary.BigEndian.Uint32(body[2:]),
	}, nil
}
