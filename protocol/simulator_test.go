package protocol

import (
	"errors"
	"testing"
)

func TestSimulatorReadWrite(t *testing.T) {
	for _, codec := range []Codec{DefaultCodec, DatasheetCodec} {
		sim := NewSimulator(codec, Node0, Node2)
		bus := NewBus(sim)
		reply := make([]byte, codec.ReplyLen())

		w, _ := codec.BuildWriteDatagram(Node2, WriteCHOPCONF, 0x15000053)
		if err := bus.Send(w.Bytes()); err != nil {
			t.Fatalf("%s: Send: %v", codec.Framing, err)
		}
		if got := sim.Register(Node2, uint8(ReadCHOPCONF)); got != 0x15000053 {
			t.Errorf("%s: CHOPCONF = 0x%08X", codec.Framing, got)
		}
		if got := sim.Register(Node0, uint8(ReadCHOPCONF)); got != SimCHOPCONFReset {
			t.Errorf("%s: write leaked to node 0: 0x%08X", codec.Framing, got)
		}

		r, _ := codec.BuildReadRequest(Node2, ReadIFCNT)
		if err := bus.Exchange(r.Bytes(), reply); err != nil {
			t.Fatalf("%s: Exchange: %v", codec.Framing, err)
		}
		parsed, err := codec.ParseReadReply(reply)
		if err != nil || parsed.Data != 1 {
			t.Errorf("%s: IFCNT reply %+v, %v", codec.Framing, parsed, err)
		}
	}
}

func TestSimulatorClearGSTAT(t *testing.T) {
	sim := NewSimulator(DefaultCodec, Node0)
	sim.SetRegister(Node0, uint8(ReadGSTAT), 0x07)
	w, _ := DefaultCodec.BuildWriteDatagram(Node0, ClearGSTAT, 0x01)
	if err := sim.Transmit(w.Bytes()); err != nil {
		t.Fatal(err)
	}
	if got := sim.Register(Node0, uint8(ReadGSTAT)); got != 0x06 {
		t.Errorf("GSTAT = 0x%X, expected 0x6", got)
	}
}

func TestSimulatorIgnoresBadDatagrams(t *testing.T) {
	sim := NewSimulator(DefaultCodec, Node0)
	bus := NewBus(sim)
	reply := make([]byte, DefaultCodec.ReplyLen())

	// absent node
	r, _ := DefaultCodec.BuildReadRequest(Node1, ReadGCONF)
	if err := bus.Exchange(r.Bytes(), reply); !errors.Is(err, ErrTimeout) {
		t.Errorf("absent node: expected ErrTimeout, got %v", err)
	}

	// corrupted request
	r, _ = DefaultCodec.BuildReadRequest(Node0, ReadGCONF)
	bad := append([]byte{}, r.Bytes()...)
	bad[len(bad)-1] ^= 0xFF
	if err := bus.Exchange(bad, reply); !errors.Is(err, ErrTimeout) {
		t.Errorf("bad CRC: expected ErrTimeout, got %v", err)
	}
}

func TestSimulatorCorruptReply(t *testing.T) {
	sim := NewSimulator(DefaultCodec, Node0)
	sim.CorruptReplies(1)
	bus := NewBus(sim)
	reply := make([]byte, DefaultCodec.ReplyLen())

	r, _ := DefaultCodec.BuildReadRequest(Node0, ReadIOIN)
	if err := bus.Exchange(r.Bytes(), reply); err != nil {
		t.Fatal(err)
	}
	if _, err := DefaultCodec.ParseReadReply(reply); !IsChecksumError(err) {
		t.Errorf("expected ChecksumError, got %v", err)
	}

	if err := bus.Exchange(r.Bytes(), reply); err != nil {
		t.Fatal(err)
	}
	if parsed, err := DefaultCodec.ParseReadReply(reply); err != nil || parsed.Data != SimIOINReset {
		t.Errorf("second reply %+v, %v", parsed, err)
	}
}

func TestSimulatorEcho(t *testing.T) {
	sim := NewSimulator(DatasheetCodec, Node0)
	sim.SetEcho(true)
	bus := NewBus(sim, WithEcho(true))

	r, _ := DatasheetCodec.BuildReadRequest(Node0, ReadGCONF)
	reply := make([]byte, DatasheetCodec.ReplyLen())
	if err := bus.Exchange(r.Bytes(), reply); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if parsed, err := DatasheetCodec.ParseReadReply(reply); err != nil || parsed.Data != SimGCONFReset {
		t.Errorf("reply %+v, %v", parsed, err)
	}
	if n := len(sim.Sent()); n != 1 {
		t.Errorf("%d datagrams sent", n)
	}
}
