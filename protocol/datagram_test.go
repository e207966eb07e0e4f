package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildWriteDatagram(t *testing.T) {
	testCases := []struct {
		name     string
		codec    Codec
		node     NodeAddress
		reg      WriteRegister
		data     uint32
		expected []byte
	}{
		{
			name:     "padded VACTUAL stop",
			codec:    DefaultCodec,
			node:     Node0,
			reg:      WriteVACTUAL,
			data:     0,
			expected: []byte{0x05, 0x00, 0x00, 0xA2, 0x00, 0x00, 0x00, 0x00, 0xE6},
		},
		{
			name:     "padded CHOPCONF node 2",
			codec:    DefaultCodec,
			node:     Node2,
			reg:      WriteCHOPCONF,
			data:     0x10000053,
			expected: []byte{0x05, 0x00, 0x02, 0xEC, 0x10, 0x00, 0x00, 0x53, 0xC2},
		},
		{
			name:     "datasheet GCONF",
			codec:    DatasheetCodec,
			node:     Node0,
			reg:      WriteGCONF,
			data:     0x000001C0,
			expected: []byte{0x05, 0x00, 0x80, 0x00, 0x00, 0x01, 0xC0, 0xF6},
		},
	}

	for _, tc := range testCases {
		d, err := tc.codec.BuildWriteDatagram(tc.node, tc.reg, tc.data)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if !bytes.Equal(d.Bytes(), tc.expected) {
			t.Errorf("%s: got % X, expected % X", tc.name, d.Bytes(), tc.expected)
		}
		if d.Len() != tc.codec.WriteLen() {
			t.Errorf("%s: length %d, expected %d", tc.name, d.Len(), tc.codec.WriteLen())
		}
	}
}

func TestBuildReadRequest(t *testing.T) {
	testCases := []struct {
		name     string
		codec    Codec
		node     NodeAddress
		reg      ReadRegister
		expected []byte
	}{
		{"padded GCONF", DefaultCodec, Node0, ReadGCONF, []byte{0x05, 0x00, 0x00, 0x00, 0x81}},
		{"padded IFCNT node 3", DefaultCodec, Node3, ReadIFCNT, []byte{0x05, 0x00, 0x03, 0x02, 0x68}},
		{"datasheet GCONF", DatasheetCodec, Node0, ReadGCONF, []byte{0x05, 0x00, 0x00, 0x48}},
		{"datasheet IOIN node 1", DatasheetCodec, Node1, ReadIOIN, []byte{0x05, 0x01, 0x06, 0xD9}},
	}

	for _, tc := range testCases {
		d, err := tc.codec.BuildReadRequest(tc.node, tc.reg)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if !bytes.Equal(d.Bytes(), tc.expected) {
			t.Errorf("%s: got % X, expected % X", tc.name, d.Bytes(), tc.expected)
		}
		if d.Len() != tc.codec.ReadLen() {
			t.Errorf("%s: length %d, expected %d", tc.name, d.Len(), tc.codec.ReadLen())
		}
	}
}

func TestBuildRejectsInvalidNode(t *testing.T) {
	if _, err := DefaultCodec.BuildReadRequest(NodeAddress(4), ReadGCONF); !IsOutOfRange(err) {
		t.Errorf("expected OutOfRangeError for node 4, got %v", err)
	}
	if _, err := DefaultCodec.BuildWriteDatagram(NodeAddress(0x10), WriteGCONF, 0); !IsOutOfRange(err) {
		t.Errorf("expected OutOfRangeError for node 0x10, got %v", err)
	}
}

func TestParseReadReply(t *testing.T) {
	reply := []byte{0x01, 0x6C, 0x08, 0x00, 0x00, 0x00, 0x1B}
	r, err := DefaultCodec.ParseReadReply(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Node != 1 || r.Register != ReadCHOPCONF || r.Data != 0x08000000 {
		t.Errorf("parsed %+v", r)
	}

	ds := []byte{0x05, 0xFF, 0x06, 0x21, 0x00, 0x00, 0x40, 0x4F}
	r, err = DatasheetCodec.ParseReadReply(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Node != MasterAddr || r.Register != ReadIOIN || r.Data != 0x21000040 {
		t.Errorf("parsed %+v", r)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80000000, 0xDEADBEEF, 0xFFFFFFFF}
	for _, codec := range []Codec{DefaultCodec, DatasheetCodec} {
		for node := Node0; node <= Node3; node++ {
			for _, reg := range ReadRegisters() {
				for _, v := range values {
					d := codec.BuildReadReply(node, reg, v)
					r, err := codec.ParseReadReply(d.Bytes())
					if err != nil {
						t.Fatalf("%s node %d %s 0x%08X: %v", codec.Framing, node, reg, v, err)
					}
					wantNode := uint8(node)
					if codec.Framing == FramingDatasheet {
						wantNode = MasterAddr
					}
					if r.Node != wantNode || r.Register != reg || r.Data != v {
						t.Errorf("%s: round trip mismatch: %+v", codec.Framing, r)
					}
				}
			}
		}
	}
}

func TestParseReadReplyFlippedBit(t *testing.T) {
	d := DefaultCodec.BuildReadReply(Node0, ReadIFCNT, 5)
	b := append([]byte{}, d.Bytes()...)
	b[5] ^= 0x01 // low bit of the payload

	_, err := DefaultCodec.ParseReadReply(b)
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ChecksumError, got %v", err)
	}
	if ce.Actual != 0xBC || ce.Expected != 0xE2 {
		t.Errorf("checksum error fields: %+v", ce)
	}
}

func TestParseReadReplyFraming(t *testing.T) {
	var fe *FrameError

	if _, err := DefaultCodec.ParseReadReply([]byte{0x00, 0x02, 0x00}); !errors.As(err, &fe) {
		t.Errorf("short reply: expected FrameError, got %v", err)
	}

	// Valid CRC but reply comes from a node address other than the master
	body := []byte{0x05, 0x00, 0x06, 0x21, 0x00, 0x00, 0x40}
	b := append(body, DatasheetCRC8(body))
	if _, err := DatasheetCodec.ParseReadReply(b); !errors.As(err, &fe) {
		t.Errorf("bad master address: expected FrameError, got %v", err)
	}

	// Write flag echoed in a reply
	body = []byte{0x00, 0x82, 0x00, 0x00, 0x00, 0x01}
	b = append(body, CRC8(body))
	if _, err := DefaultCodec.ParseReadReply(b); !errors.As(err, &fe) {
		t.Errorf("write flag: expected FrameError, got %v", err)
	}
}

func TestDatagramUint64(t *testing.T) {
	d, _ := DefaultCodec.BuildReadRequest(Node0, ReadGCONF)
	if got := d.Uint64(); got != 0x0500000081 {
		t.Errorf("Uint64 = 0x%X", got)
	}
	if got := d.String(); got != "0500000081" {
		t.Errorf("String = %s", got)
	}
}

func TestParseFraming(t *testing.T) {
	for name, want := range map[string]Framing{"": FramingPadded, "padded": FramingPadded, "datasheet": FramingDatasheet} {
		got, err := ParseFraming(name)
		if err != nil || got != want {
			t.Errorf("ParseFraming(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFraming("rs485"); err == nil {
		t.Error("expected error for unknown framing")
	}
}

func TestCodecLengths(t *testing.T) {
	testCases := []struct {
		codec              Codec
		write, read, reply int
	}{
		{DefaultCodec, 9, 5, 7},
		{DatasheetCodec, 8, 4, 8},
	}

	for _, tc := range testCases {
		if got := tc.codec.WriteLen(); got != tc.write {
			t.Errorf("%v: WriteLen() = %d, expected %d", tc.codec.Framing, got, tc.write)
		}
		if got := tc.codec.ReadLen(); got != tc.read {
			t.Errorf("%v: ReadLen() = %d, expected %d", tc.codec.Framing, got, tc.read)
		}
		if got := tc.codec.ReplyLen(); got != tc.reply {
			t.Errorf("%v: ReplyLen() = %d, expected %d", tc.codec.Framing, got, tc.reply)
		}
	}
}
