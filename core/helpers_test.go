package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tmcuart/protocol"
)

type pulseTrain struct {
	reverse bool
	count   uint32
	rate    float64
}

// recordingPulses is a PulseGenerator that remembers every command
type recordingPulses struct {
	reverse bool
	trains  []pulseTrain
	stops   int
	max     uint32
	err     error
}

func (p *recordingPulses) SetDirection(reverse bool) { p.reverse = reverse }

func (p *recordingPulses) StartPulses(count uint32, rate float64) error {
	if p.err != nil {
		return p.err
	}
	p.trains = append(p.trains, pulseTrain{reverse: p.reverse, count: count, rate: rate})
	return nil
}

func (p *recordingPulses) Stop() { p.stops++ }

func (p *recordingPulses) MaxPulses() uint32 { return p.max }

func (p *recordingPulses) last(t *testing.T) pulseTrain {
	t.Helper()
	require.NotEmpty(t, p.trains)
	return p.trains[len(p.trains)-1]
}

// newTestDevice builds a device on node with a simulated chip behind it
func newTestDevice(t *testing.T, node protocol.NodeAddress, opts ...Option) (*Device, *protocol.Simulator, *recordingPulses) {
	t.Helper()
	sim := protocol.NewSimulator(protocol.DefaultCodec, node)
	pulses := &recordingPulses{}
	dev, err := New(node, pulses, protocol.NewBus(sim), 200, opts...)
	require.NoError(t, err)
	return dev, sim, pulses
}

// dropWrites loses every write datagram on the way to the chip
type dropWrites struct {
	*protocol.Simulator
	codec protocol.Codec
}

func (d dropWrites) Transmit(b []byte) error {
	if len(b) == d.codec.WriteLen() {
		return nil
	}
	return d.Simulator.Transmit(b)
}

// cannedReply answers every request with the same bytes
type cannedReply struct {
	reply []byte
}

func (c *cannedReply) Transmit([]byte) error { return nil }

func (c *cannedReply) Receive(buf []byte, _ time.Duration) error {
	copy(buf, c.reply)
	return nil
}
