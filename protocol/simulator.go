package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Power-on values reported by a simulated node
const (
	SimGCONFReset      = 0x00000041
	SimCHOPCONFReset   = 0x10000053
	SimIOINReset       = 0x21000000
	SimDRVStatusReset  = 0xC0000000
	SimTSTEPStandstill = 0x000FFFFF
)

type simNode struct {
	present bool
	regs    [RegisterMask + 1]uint32
}

// Simulator is an in-memory Transport that behaves like up to four nodes on
// one single-wire bus. Datagrams with a bad CRC or an absent node are
// ignored, as the chip does.
type Simulator struct {
	codec Codec
	echo  bool

	mu      sync.Mutex
	nodes   [MaxNodeAddress + 1]simNode
	rx      bytes.Buffer
	sent    []Datagram
	corrupt int
	silent  bool
}

// NewSimulator creates a simulator answering for nodes with codec c
func NewSimulator(c Codec, nodes ...NodeAddress) *Simulator {
	s := &Simulator{codec: c}
	for _, n := range nodes {
		if n.Valid() {
			s.reset(n)
		}
	}
	return s
}

// SetEcho makes every transmitted byte come back before the reply, like a
// single-wire adapter without echo cancellation.
func (s *Simulator) SetEcho(echo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo = echo
}

func (s *Simulator) reset(n NodeAddress) {
	node := &s.nodes[n]
	*node = simNode{present: true}
	node.regs[ReadGCONF] = SimGCONFReset
	node.regs[ReadGSTAT] = uint32(GSTATReset.Mask)
	node.regs[ReadIOIN] = SimIOINReset
	node.regs[ReadTSTEP] = SimTSTEPStandstill
	node.regs[ReadCHOPCONF] = SimCHOPCONFReset
	node.regs[ReadDRV_STATUS] = SimDRVStatusReset
}

// Transmit consumes one datagram
func (s *Simulator) Transmit(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, NewDatagram(b))
	if s.echo {
		s.rx.Write(b)
	}

	h := s.codec.header()
	if len(b) != s.codec.WriteLen() && len(b) != s.codec.ReadLen() {
		return nil
	}
	if b[0]&0x0F != SyncByte || s.codec.checksum()(b[:len(b)-CRCLen]) != b[len(b)-CRCLen] {
		return nil
	}
	addr := NodeAddress(b[h])
	if !addr.Valid() || !s.nodes[addr].present {
		return nil
	}
	node := &s.nodes[addr]
	reg := b[h+1] & RegisterMask

	if b[h+1]&WriteFlag != 0 {
		if len(b) != s.codec.WriteLen() {
			return nil
		}
		data := binary.BigEndian.Uint32(b[h+2:])
		if WriteRegister(reg) == ClearGSTAT {
			node.regs[reg] &^= data
		} else {
			node.regs[reg] = data
		}
		node.regs[ReadIFCNT] = (node.regs[ReadIFCNT] + 1) & 0xFF
		return nil
	}

	if len(b) != s.codec.ReadLen() || s.silent {
		return nil
	}
	reply := s.codec.BuildReadReply(addr, ReadRegister(reg), node.regs[reg])
	out := reply.Bytes()
	if s.corrupt > 0 {
		s.corrupt--
		out[len(out)-2] ^= 0x01
	}
	s.rx.Write(out)
	return nil
}

// Receive returns buffered reply bytes
func (s *Simulator) Receive(buf []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rx.Len() < len(buf) {
		got := s.rx.Len()
		s.rx.Reset()
		return errors.Wrapf(ErrTimeout, "received %d/%d bytes", got, len(buf))
	}
	_, err := io.ReadFull(&s.rx, buf)
	return err
}

// Register returns the value a node holds at address reg
func (s *Simulator) Register(n NodeAddress, reg uint8) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[n&MaxNodeAddress].regs[reg&RegisterMask]
}

// SetRegister overrides the value a node reports at address reg
func (s *Simulator) SetRegister(n NodeAddress, reg uint8, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n&MaxNodeAddress].regs[reg&RegisterMask] = v
}

// CorruptReplies flips a payload bit in the next count replies
func (s *Simulator) CorruptReplies(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt = count
}

// SetSilent stops all nodes from answering reads
func (s *Simulator) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// Sent returns every datagram transmitted so far
func (s *Simulator) Sent() []Datagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Datagram(nil), s.sent...)
}

// ClearSent forgets the transmission history
func (s *Simulator) ClearSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = s.sent[:0]
}
